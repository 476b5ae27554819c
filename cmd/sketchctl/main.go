// Command sketchctl ingests a text stream (one item per line from stdin)
// and reports either a frequent-items table or an HLL cardinality estimate,
// optionally round-tripping the sketch through a binary file in between.
//
// Usage:
//
//	sketchctl -mode=freq [-lgmax=8] [-threshold=0] [-save=path] [-load=path]
//	sketchctl -mode=hll  [-lgk=12] [-type=hll8] [-save=path] [-load=path]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/streamsketch/core/common"
	"github.com/streamsketch/core/frequencies"
	"github.com/streamsketch/core/hll"
)

func main() {
	mode := flag.String("mode", "hll", "sketch to run: freq or hll")
	lgMax := flag.Int("lgmax", 8, "frequent-items: log2 of the maximum map size")
	threshold := flag.Int64("threshold", 0, "frequent-items: report items whose lower bound exceeds this (or the maximum error, if larger)")
	lgK := flag.Int("lgk", 12, "hll: log2(k), the number of registers")
	tgtType := flag.String("type", "hll8", "hll: target register encoding, one of hll4, hll6, hll8")
	loadPath := flag.String("load", "", "path to a previously -save'd sketch to resume from")
	savePath := flag.String("save", "", "path to write the final sketch's binary image to")
	flag.Parse()

	var err error
	switch *mode {
	case "freq":
		err = runFrequent(*lgMax, *threshold, *loadPath, *savePath)
	case "hll":
		err = runHll(*lgK, *tgtType, *loadPath, *savePath)
	default:
		err = fmt.Errorf("unknown -mode %q: want freq or hll", *mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parseTgtHllType(s string) (hll.TgtHllType, error) {
	switch s {
	case "hll4":
		return hll.TgtHllTypeHll4, nil
	case "hll6":
		return hll.TgtHllTypeHll6, nil
	case "hll8":
		return hll.TgtHllTypeHll8, nil
	default:
		return 0, fmt.Errorf("unknown -type %q: want hll4, hll6, or hll8", s)
	}
}

func runHll(lgK int, tgtType string, loadPath, savePath string) error {
	t, err := parseTgtHllType(tgtType)
	if err != nil {
		return err
	}

	var sk hll.HllSketch
	if loadPath != "" {
		b, err := os.ReadFile(loadPath)
		if err != nil {
			return fmt.Errorf("reading -load %q: %w", loadPath, err)
		}
		sk, err = hll.NewHllSketchFromSlice(b, true)
		if err != nil {
			return fmt.Errorf("deserializing %q: %w", loadPath, err)
		}
	} else {
		sk, err = hll.NewHllSketch(lgK, t)
		if err != nil {
			return fmt.Errorf("constructing hll sketch: %w", err)
		}
	}

	n, err := ingest(os.Stdin, func(line string) error { return sk.UpdateString(line) })
	if err != nil {
		return err
	}

	est, err := sk.GetEstimate()
	if err != nil {
		return err
	}
	lb, err := sk.GetLowerBound(1)
	if err != nil {
		return err
	}
	ub, err := sk.GetUpperBound(1)
	if err != nil {
		return err
	}
	fmt.Printf("lines=%d mode=%v lgConfigK=%d estimate=%.2f lowerBound=%.2f upperBound=%.2f\n",
		n, sk.GetCurMode(), sk.GetLgConfigK(), est, lb, ub)

	if savePath != "" {
		b, err := sk.ToCompactSlice()
		if err != nil {
			return err
		}
		if err := os.WriteFile(savePath, b, 0o644); err != nil {
			return fmt.Errorf("writing -save %q: %w", savePath, err)
		}
	}
	return nil
}

func runFrequent(lgMax int, threshold int64, loadPath, savePath string) error {
	hasher := common.StringHasher{}
	serde := common.StringSerde{}

	var sk *frequencies.ItemsSketch[string]
	var err error
	if loadPath != "" {
		b, rerr := os.ReadFile(loadPath)
		if rerr != nil {
			return fmt.Errorf("reading -load %q: %w", loadPath, rerr)
		}
		sk, err = frequencies.NewItemsSketchFromSlice[string](b, hasher, serde)
		if err != nil {
			return fmt.Errorf("deserializing %q: %w", loadPath, err)
		}
	} else {
		sk, err = frequencies.NewItemsSketchWithMaxMapSize[string](1<<lgMax, hasher, serde)
		if err != nil {
			return fmt.Errorf("constructing frequent-items sketch: %w", err)
		}
	}

	n, err := ingest(os.Stdin, func(line string) error { return sk.Update(line) })
	if err != nil {
		return err
	}

	rows, err := sk.GetFrequentItemsWithThreshold(threshold, frequencies.ErrorTypeEnum.NoFalsePositives)
	if err != nil {
		return err
	}
	fmt.Printf("lines=%d streamLength=%d maximumError=%d activeItems=%d\n",
		n, sk.GetStreamLength(), sk.GetMaximumError(), sk.GetNumActiveItems())
	for _, r := range rows {
		fmt.Println(r.String())
	}

	if savePath != "" {
		b, err := sk.ToSlice()
		if err != nil {
			return err
		}
		if err := os.WriteFile(savePath, b, 0o644); err != nil {
			return fmt.Errorf("writing -save %q: %w", savePath, err)
		}
	}
	return nil
}

func ingest(f *os.File, update func(line string) error) (int, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := update(line); err != nil {
			return n, fmt.Errorf("updating sketch on line %d: %w", n+1, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading stdin: %w", err)
	}
	return n, nil
}
