// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtsp

import (
	"fmt"

	"github.com/q191201771/lalplay/pkg/base"
)

// TrackGroup 一组可以互相替换的track，当前每个组只有一个track
type TrackGroup struct {
	formats []base.Format
}

func NewTrackGroup(formats ...base.Format) TrackGroup {
	return TrackGroup{formats: formats}
}

func (g TrackGroup) Length() int {
	return len(g.formats)
}

func (g TrackGroup) Format(index int) base.Format {
	return g.formats[index]
}

func (g TrackGroup) IndexOf(format base.Format) int {
	for i := range g.formats {
		if g.formats[i].Equal(&format) {
			return i
		}
	}
	return -1
}

type TrackGroupArray struct {
	groups []TrackGroup
}

var EmptyTrackGroupArray = TrackGroupArray{}

func NewTrackGroupArray(groups ...TrackGroup) TrackGroupArray {
	return TrackGroupArray{groups: groups}
}

func (a TrackGroupArray) Length() int {
	return len(a.groups)
}

func (a TrackGroupArray) Get(index int) TrackGroup {
	return a.groups[index]
}

// IndexOf 按组内的格式比较
func (a TrackGroupArray) IndexOf(group TrackGroup) int {
	for i := range a.groups {
		if equalTrackGroup(a.groups[i], group) {
			return i
		}
	}
	return -1
}

func (a TrackGroupArray) String() string {
	s := "["
	for i, g := range a.groups {
		if i != 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d:", i)
		for _, f := range g.formats {
			s += f.DebugString()
		}
	}
	return s + "]"
}

func equalTrackGroup(a, b TrackGroup) bool {
	if len(a.formats) != len(b.formats) {
		return false
	}
	for i := range a.formats {
		if !a.formats[i].Equal(&b.formats[i]) {
			return false
		}
	}
	return true
}

// TrackSelection 上层对某个TrackGroup的选择结果
type TrackSelection interface {
	TrackGroup() TrackGroup
	Length() int
	IndexInTrackGroup(index int) int
}

// FixedTrackSelection 选择组内固定的一个track
type FixedTrackSelection struct {
	group TrackGroup
	track int
}

func NewFixedTrackSelection(group TrackGroup, track int) *FixedTrackSelection {
	return &FixedTrackSelection{group: group, track: track}
}

func (s *FixedTrackSelection) TrackGroup() TrackGroup {
	return s.group
}

func (s *FixedTrackSelection) Length() int {
	return 1
}

func (s *FixedTrackSelection) IndexInTrackGroup(index int) int {
	return s.track
}
