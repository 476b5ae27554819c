package internal

// Family identifies the sketch family carried in byte 2 of every preamble,
// so images from different sketch families stay distinguishable even when
// mixed on the wire.
type Family struct {
	Id          byte
	MaxPreLongs int
}

var FamilyEnum = struct {
	Frequency Family
	HLL       Family
}{
	Frequency: Family{Id: 10, MaxPreLongs: 4},
	HLL:       Family{Id: 7, MaxPreLongs: 10},
}
