// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tilestats

import (
	"fmt"
	"strings"
)

// DataType is the numeric type of the samples held by a tile
type DataType int

const (
	//Unknown / Unset Datatype
	Unknown DataType = iota
	//Byte / UInt8
	Byte
	//UInt16 DataType
	UInt16
	//Int16 DataType
	Int16
	//UInt32 DataType
	UInt32
	//Int32 DataType
	Int32
	//Float32 DataType
	Float32
	//Float64 DataType
	Float64
)

var dataTypeNames = [...]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

// String implements Stringer
func (dtype DataType) String() string {
	if dtype < 0 || int(dtype) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(dtype))
	}
	return dataTypeNames[dtype]
}

// ParseDataType returns the DataType named s, as returned by String, ignoring case
func ParseDataType(s string) (DataType, error) {
	for i, n := range dataTypeNames {
		if i > 0 && strings.EqualFold(n, s) {
			return DataType(i), nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// Size returns the number of bytes needed for one sample of DataType
func (dtype DataType) Size() int {
	switch dtype {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unsupported type")
	}
}

// IsFloat reports whether samples of this type may be NaN
func (dtype DataType) IsFloat() bool {
	return dtype == Float32 || dtype == Float64
}

// dataTypeOf returns the DataType matching the element type of a typed
// sample slice, or Unknown
func dataTypeOf(buffer interface{}) DataType {
	switch buffer.(type) {
	case []uint8:
		return Byte
	case []uint16:
		return UInt16
	case []int16:
		return Int16
	case []uint32:
		return UInt32
	case []int32:
		return Int32
	case []float32:
		return Float32
	case []float64:
		return Float64
	default:
		return Unknown
	}
}

func bufferLen(buffer interface{}) int {
	switch b := buffer.(type) {
	case []uint8:
		return len(b)
	case []uint16:
		return len(b)
	case []int16:
		return len(b)
	case []uint32:
		return len(b)
	case []int32:
		return len(b)
	case []float32:
		return len(b)
	case []float64:
		return len(b)
	default:
		return 0
	}
}

// makeBuffer allocates a typed slice of n samples of type dtype
func makeBuffer(dtype DataType, n int) interface{} {
	switch dtype {
	case Byte:
		return make([]uint8, n)
	case UInt16:
		return make([]uint16, n)
	case Int16:
		return make([]int16, n)
	case UInt32:
		return make([]uint32, n)
	case Int32:
		return make([]int32, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	default:
		panic("unsupported type")
	}
}
