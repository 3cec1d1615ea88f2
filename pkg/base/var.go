// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- upstream --------------------
var (
	// UdpMaxPacketSize 单个udp包的最大长度
	// 65535 - ip header(20) - udp header(8)
	UdpMaxPacketSize = 65507

	// UdpReadTimeoutMs udp data source单次读取的超时时间
	UdpReadTimeoutMs = 8000
)

// ----- rtsp --------------------
var (
	// TcpReadIntervalMs interleaved模式下，两次读取之间休眠的时间，避免空转占满cpu
	TcpReadIntervalMs = 10

	// PunchPacketSendTimes 打洞包发送的次数
	PunchPacketSendTimes = 2
)

// Mp2tClockRate ts中pts/dts的时钟频率
const Mp2tClockRate = 90000
