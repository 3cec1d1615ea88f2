// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtpfmt_test

import (
	"testing"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/naza/pkg/assert"
)

var goldenSdp = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=lalplay\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"t=0 0\r\n" +
	"m=audio 0 RTP/AVP 97\r\n" +
	"a=rtpmap:97 MPEG4-GENERIC/44100/2\r\n" +
	"a=fmtp:97 streamtype=5; profile-level-id=15; mode=AAC-hbr; config=1210; sizelength=13; indexlength=3; indexdeltalength=3\r\n" +
	"a=ptime:20\r\n" +
	"a=maxptime:40\r\n" +
	"m=video 0 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 packetization-mode=1; profile-level-id=42e01f; sprop-parameter-sets=Z0LgH9oCgL0Q,aM4wpIA=\r\n" +
	"a=framerate:25\r\n" +
	"m=video 0 RTP/AVP 33\r\n"

func TestAacCsdKnownRateAndChannels(t *testing.T) {
	// config非法也不影响结果，说明没有走解析流程
	pf := rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithClockRate(44100),
		rtpfmt.WithChannels(2),
		rtpfmt.WithParameter(rtpfmt.ParamConfig, "zz"))
	csd := pf.BuildCodecSpecificData()
	assert.Equal(t, 1, len(csd))
	assert.Equal(t, []byte{0x12, 0x10}, csd[0])

	pf = rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithClockRate(44100),
		rtpfmt.WithChannels(2))
	csd = pf.BuildCodecSpecificData()
	assert.Equal(t, 1, len(csd))
	assert.Equal(t, []byte{0x12, 0x10}, csd[0])
}

func TestAacCsdFromConfig(t *testing.T) {
	pf := rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithClockRate(base.NoValue),
		rtpfmt.WithChannels(base.NoValue),
		rtpfmt.WithParameter(rtpfmt.ParamConfig, "1190"))
	csd := pf.BuildCodecSpecificData()
	assert.Equal(t, 1, len(csd))
	assert.Equal(t, []byte{0x11, 0x90}, csd[0])
	assert.Equal(t, 48000, pf.ClockRate())
	assert.Equal(t, 2, pf.Channels())

	// 只填充未知的字段
	pf = rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithClockRate(48000),
		rtpfmt.WithChannels(base.NoValue),
		rtpfmt.WithParameter(rtpfmt.ParamConfig, "1210"))
	csd = pf.BuildCodecSpecificData()
	assert.Equal(t, []byte{0x11, 0x90}, csd[0])
	assert.Equal(t, 48000, pf.ClockRate())
	assert.Equal(t, 2, pf.Channels())
}

func TestAacCsdMalformed(t *testing.T) {
	for _, config := range []string{"zz", "12", "1690", ""} {
		pf := rtpfmt.NewAudioPayload(
			rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
			rtpfmt.WithClockRate(base.NoValue),
			rtpfmt.WithParameter(rtpfmt.ParamConfig, config))
		csd := pf.BuildCodecSpecificData()
		assert.Equal(t, 1, len(csd))
		assert.Equal(t, 0, len(csd[0]))
	}

	// 没有config
	pf := rtpfmt.NewAudioPayload(rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic))
	csd := pf.BuildCodecSpecificData()
	assert.Equal(t, 1, len(csd))
	assert.Equal(t, 0, len(csd[0]))
	f := pf.Format("1")
	assert.Equal(t, 0, len(f.InitializationData))
}

func TestCsdMemoized(t *testing.T) {
	pf := rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithClockRate(base.NoValue),
		rtpfmt.WithChannels(base.NoValue),
		rtpfmt.WithParameter(rtpfmt.ParamConfig, "1210"))
	csd1 := pf.BuildCodecSpecificData()
	csd2 := pf.BuildCodecSpecificData()
	assert.Equal(t, &csd1[0][0], &csd2[0][0])

	// 修改参数后重新推导
	pf.SetParameter(rtpfmt.ParamConfig, "1190")
	csd3 := pf.BuildCodecSpecificData()
	// clock rate和channels已经在第一次推导时填充，所以结果不变
	assert.Equal(t, []byte{0x12, 0x10}, csd3[0])
	assert.Equal(t, false, &csd1[0][0] == &csd3[0][0])
}

func TestBuildCodecProfileLevel(t *testing.T) {
	pf := rtpfmt.NewAudioPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingMpeg4Generic),
		rtpfmt.WithParameter(rtpfmt.ParamProfileLevelId, "15"))
	assert.Equal(t, "mp4a.40.15", pf.BuildCodecProfileLevel())

	pf = rtpfmt.NewVideoPayload(
		rtpfmt.WithEncoding(rtpfmt.EncodingH264),
		rtpfmt.WithParameter(rtpfmt.ParamProfileLevelId, "42e01f"))
	assert.Equal(t, "avc1.42E01F", pf.BuildCodecProfileLevel())

	pf = rtpfmt.NewVideoPayload(rtpfmt.WithEncoding(rtpfmt.EncodingH264))
	assert.Equal(t, "", pf.BuildCodecProfileLevel())

	pf.SetParameter(rtpfmt.ParamProfileLevelId, "4d0029")
	assert.Equal(t, "avc1.4D0029", pf.BuildCodecProfileLevel())
}

func TestPtimeAndMaxPtimeIndependent(t *testing.T) {
	pf := rtpfmt.NewAudioPayload(rtpfmt.WithPtime(20), rtpfmt.WithMaxPtime(40))
	assert.Equal(t, int64(20), pf.Ptime())
	assert.Equal(t, int64(40), pf.MaxPtime())

	pf = rtpfmt.NewAudioPayload(rtpfmt.WithMaxPtime(60))
	assert.Equal(t, int64(base.NoValue), pf.Ptime())
	assert.Equal(t, int64(60), pf.MaxPtime())
}

func TestParameters(t *testing.T) {
	ps := rtpfmt.ParseFmtpParameters("streamtype=5; profile-level-id=15;mode=AAC-hbr; ; config=1210")
	assert.Equal(t, 4, ps.Len())
	items := ps.Items()
	assert.Equal(t, "streamtype", items[0].Name)
	assert.Equal(t, "config", items[3].Name)
	assert.Equal(t, "AAC-hbr", ps.Value("MODE"))

	ps.Set("Mode", "generic")
	assert.Equal(t, 4, ps.Len())
	assert.Equal(t, "generic", ps.Items()[2].Value)
	assert.Equal(t, false, ps.Contains("sizelength"))
}

func TestFromMediaDescription(t *testing.T) {
	sd, err := rtpfmt.ParseSessionDescription([]byte(goldenSdp))
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(sd.MediaDescriptions))

	apf, err := rtpfmt.FromMediaDescription(sd.MediaDescriptions[0], -1)
	assert.Equal(t, nil, err)
	assert.Equal(t, rtpfmt.MediaTypeAudio, apf.MediaType())
	assert.Equal(t, 97, apf.PayloadType())
	assert.Equal(t, base.MimeAudioAac, apf.SampleMimeType())
	assert.Equal(t, 44100, apf.ClockRate())
	assert.Equal(t, 2, apf.Channels())
	assert.Equal(t, int64(20), apf.Ptime())
	assert.Equal(t, int64(40), apf.MaxPtime())
	assert.Equal(t, "13", apf.Parameter(rtpfmt.ParamSizeLength))
	af := apf.Format("0")
	assert.Equal(t, "mp4a.40.15", af.Codecs)
	assert.Equal(t, [][]byte{{0x12, 0x10}}, af.InitializationData)
	assert.Equal(t, base.TrackTypeAudio, af.TrackType())

	vpf, err := rtpfmt.FromMediaDescription(sd.MediaDescriptions[1], 96)
	assert.Equal(t, nil, err)
	assert.Equal(t, base.MimeVideoH264, vpf.SampleMimeType())
	assert.Equal(t, 90000, vpf.ClockRate())
	assert.Equal(t, float64(25), vpf.FrameRate())
	csd := vpf.BuildCodecSpecificData()
	assert.Equal(t, 2, len(csd))
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67}, csd[0][:5])
	assert.Equal(t, []byte{0, 0, 0, 1, 0x68}, csd[1][:5])

	// 静态负载类型
	tpf, err := rtpfmt.FromMediaDescription(sd.MediaDescriptions[2], -1)
	assert.Equal(t, nil, err)
	assert.Equal(t, base.MimeVideoMp2t, tpf.SampleMimeType())
	assert.Equal(t, 90000, tpf.ClockRate())

	_, err = rtpfmt.FromMediaDescription(sd.MediaDescriptions[1], 100)
	assert.IsNotNil(t, err)
}
