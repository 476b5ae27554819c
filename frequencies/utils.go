/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package frequencies

const (
	_LG_MIN_MAP_SIZE = 3
	// This constant is large enough so that computing the median of SAMPLE_SIZE
	// randomly selected entries from a list of counters and outputting the
	// empirical median will give a constant-factor approximation to the true
	// median with high probability.
	_SAMPLE_SIZE = 1024
	_SER_VER     = 1

	_EMPTY_FLAG_MASK = 1

	// _strPreambleTokens is the number of comma-separated tokens ToString
	// writes before handing off to the hash map's own serialization: serVer,
	// familyID, lgMaxMapSize, flags, streamWeight, offset.
	_strPreambleTokens = 6
)

// errorType selects which of the two one-sided error guarantees
// GetFrequentItemsWithThreshold honours.
type errorType int

var ErrorTypeEnum = struct {
	NoFalseNegatives errorType
	NoFalsePositives errorType
}{
	NoFalseNegatives: 0,
	NoFalsePositives: 1,
}
