// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreStreamWrapper = "STREAMWRAPPER"
	UkPreLoader        = "LOADER"
	UkPreUdpSource     = "UDPSRC"
	UkPreRtpSource     = "RTPSRC"
	UkPreTcpSource     = "TCPSRC"
	UkPrePlayer        = "PLAYER"
)

var (
	siUkStreamWrapper *unique.SingleGenerator
	siUkLoader        *unique.SingleGenerator
	siUkUdpSource     *unique.SingleGenerator
	siUkRtpSource     *unique.SingleGenerator
	siUkTcpSource     *unique.SingleGenerator
	siUkPlayer        *unique.SingleGenerator
)

func GenUkStreamWrapper() string {
	return siUkStreamWrapper.GenUniqueKey()
}

func GenUkLoader() string {
	return siUkLoader.GenUniqueKey()
}

func GenUkUdpSource() string {
	return siUkUdpSource.GenUniqueKey()
}

func GenUkRtpSource() string {
	return siUkRtpSource.GenUniqueKey()
}

func GenUkTcpSource() string {
	return siUkTcpSource.GenUniqueKey()
}

func GenUkPlayer() string {
	return siUkPlayer.GenUniqueKey()
}

func init() {
	siUkStreamWrapper = unique.NewSingleGenerator(UkPreStreamWrapper)
	siUkLoader = unique.NewSingleGenerator(UkPreLoader)
	siUkUdpSource = unique.NewSingleGenerator(UkPreUdpSource)
	siUkRtpSource = unique.NewSingleGenerator(UkPreRtpSource)
	siUkTcpSource = unique.NewSingleGenerator(UkPreTcpSource)
	siUkPlayer = unique.NewSingleGenerator(UkPrePlayer)
}
