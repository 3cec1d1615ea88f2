// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package extractor

import (
	"errors"
	"fmt"

	"github.com/q191201771/lalplay/pkg/base"
)

// ExtractorsFactory 创建候选的extractor，通过Sniff选择其中一个
type ExtractorsFactory interface {
	CreateExtractors() []Extractor
}

type DefaultExtractorsFactory struct{}

func NewDefaultExtractorsFactory() *DefaultExtractorsFactory {
	return &DefaultExtractorsFactory{}
}

func (f *DefaultExtractorsFactory) CreateExtractors() []Extractor {
	return []Extractor{
		NewTsExtractor(),
		NewAdtsExtractor(),
	}
}

// SelectExtractor 依次尝试Sniff，返回第一个匹配的extractor，其余的被释放
func SelectExtractor(extractors []Extractor, input Input) (Extractor, error) {
	for i, e := range extractors {
		ok, err := e.Sniff(input)
		input.ResetPeekPosition()
		if ok {
			releaseExtractors(extractors[i+1:])
			return e, nil
		}
		e.Release()
		if err != nil && !errors.Is(err, base.ErrEndOfInput) {
			// 读取失败时，后面的extractor也读不到数据了
			releaseExtractors(extractors[i+1:])
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w. candidates=%d", base.ErrExtractorNotFound, len(extractors))
}

func releaseExtractors(extractors []Extractor) {
	for _, e := range extractors {
		e.Release()
	}
}
