// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"strconv"

	"github.com/q191201771/lalplay/pkg/base"
)

// Extractor 从字节流中解析出带时间戳的样本
type Extractor interface {
	// Sniff 判断输入是否是该extractor支持的格式，只使用Peek，不消费输入
	Sniff(input Input) (bool, error)

	// Init 在第一次Read之前调用
	Init(output Output)

	// Read 读取一个单元的数据
	//
	// @return ResultContinue 继续调用Read
	//         ResultSeek     需要从<seekPosition>处重新读取
	//         ResultEndOfInput 没有更多数据了
	//
	Read(input Input, seekPosition *PositionHolder) (int, error)

	// Seek 通知extractor下一次读取的位置和对应的时间
	Seek(position int64, timeUs int64)

	Release()
}

type PositionHolder struct {
	Position int64
}

// Output extractor的输出，由持有样本队列的一方实现
type Output interface {
	// Track 获取id对应的track，同一个id多次调用返回同一个对象
	Track(id int, trackType base.TrackType) TrackOutput

	// EndTracks 所有track都已经通过Track创建
	EndTracks()

	SeekMap(seekMap SeekMap)
}

// TrackOutput 由样本队列实现
type TrackOutput interface {
	Format(format base.Format)
	SampleData(b []byte)
	SampleMetadata(timeUs int64, flags int, size int, offset int)
}

type SeekMap interface {
	IsSeekable() bool
	DurationUs() int64
}

// Unseekable 直播流不支持seek
type Unseekable struct {
	durationUs int64
}

func NewUnseekable(durationUs int64) *Unseekable {
	return &Unseekable{durationUs: durationUs}
}

func (u *Unseekable) IsSeekable() bool {
	return false
}

func (u *Unseekable) DurationUs() int64 {
	return u.durationUs
}

// TrackIdGenerator 生成track id，同一个extractor输出多个track时使用
type TrackIdGenerator struct {
	prefix    string
	firstId   int
	increment int
	trackId   int
}

func NewTrackIdGenerator(firstTrackId int, trackIdIncrement int) *TrackIdGenerator {
	return &TrackIdGenerator{
		firstId:   firstTrackId,
		increment: trackIdIncrement,
		trackId:   base.NoValue,
	}
}

// NewTrackIdGeneratorWithPrefix format id的形式为 <prefix>/<trackId>
func NewTrackIdGeneratorWithPrefix(prefix string, firstTrackId int, trackIdIncrement int) *TrackIdGenerator {
	g := NewTrackIdGenerator(firstTrackId, trackIdIncrement)
	g.prefix = prefix
	return g
}

func (g *TrackIdGenerator) GenerateNewId() int {
	if g.trackId == base.NoValue {
		g.trackId = g.firstId
	} else {
		g.trackId += g.increment
	}
	return g.trackId
}

// TrackId 调用方保证之前调用过GenerateNewId
func (g *TrackIdGenerator) TrackId() int {
	return g.trackId
}

func (g *TrackIdGenerator) FormatId() string {
	if g.prefix == "" {
		return strconv.Itoa(g.trackId)
	}
	return g.prefix + "/" + strconv.Itoa(g.trackId)
}
