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

import "image"

// maskCase is the masking configuration, resolved once per engine
type maskCase int

const (
	maskNone maskCase = iota
	maskROI
	maskNoData
	maskBoth
)

func (mc maskCase) String() string {
	return [...]string{"none", "roi", "nodata", "roi+nodata"}[mc]
}

type maskPolicy struct {
	kind      maskCase
	roi       ROI
	roiBounds image.Rectangle
	accessor  bool
	nodata    Range
	// set for Byte sources with a nodata range
	byteTable *[256]bool
}

func newMaskPolicy(roi ROI, nodata *Range, accessor bool, dtype DataType) *maskPolicy {
	m := &maskPolicy{}
	hasNoData := nodata != nil && !nodata.IsEmpty()
	switch {
	case roi != nil && hasNoData:
		m.kind = maskBoth
	case roi != nil:
		m.kind = maskROI
	case hasNoData:
		m.kind = maskNoData
	}
	if roi != nil {
		m.roi = roi
		m.roiBounds = roi.Bounds()
		m.accessor = accessor
	}
	if hasNoData {
		m.nodata = *nodata
		if dtype == Byte {
			m.byteTable = nodata.byteTable()
		}
	}
	return m
}

func (m *maskPolicy) usesROI() bool {
	return m.kind == maskROI || m.kind == maskBoth
}

func (m *maskPolicy) usesNoData() bool {
	return m.kind == maskNoData || m.kind == maskBoth
}

// disjoint reports whether no pixel of r can be inside the ROI
func (m *maskPolicy) disjoint(r image.Rectangle) bool {
	return m.usesROI() && !r.Overlaps(m.roiBounds)
}

// plane returns the ROI materialized over r, or nil if point queries must be
// used for this tile
func (m *maskPolicy) plane(r image.Rectangle) []byte {
	if !m.usesROI() || !m.accessor {
		return nil
	}
	p, ok := m.roi.(ROIPlaner)
	if !ok {
		return nil
	}
	plane, ok := p.Plane(r)
	if !ok || len(plane) != r.Dx()*r.Dy() {
		return nil
	}
	return plane
}
