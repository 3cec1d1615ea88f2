// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/lalplay/pkg/logic"
	"github.com/q191201771/lalplay/pkg/rtpfmt"
	"github.com/q191201771/lalplay/pkg/rtsp"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/connection"
	"github.com/q191201771/naza/pkg/nazalog"
	"golang.org/x/sync/errgroup"
)

const readBufSize = 65536

func main() {
	confFile := parseFlag()

	config, err := logic.LoadConfFile(confFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf file failed. file=%s err=%+v\n", confFile, err)
		os.Exit(1)
	}
	if err = nazalog.Init(func(option *nazalog.Option) {
		*option = config.Log
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		os.Exit(1)
	}
	nazalog.Infof("bininfo: %s", bininfo.StringifySingleLine())
	nazalog.Infof("version: %s", base.LalplayFullInfo)
	nazalog.Infof("load conf file succ. file=%s, content=%+v", confFile, config)

	if err = run(config); err != nil {
		nazalog.Errorf("run failed. err=%+v", err)
		os.Exit(1)
	}
	nazalog.Info("bye.")
}

func run(config *logic.Config) error {
	var payloadFormat *rtpfmt.PayloadFormat
	if config.Stream.Protocol == rtsp.TransportProtocolRtp {
		var err error
		if payloadFormat, err = logic.LoadPayloadFormatFile(config.SdpFile, config.Stream.Url); err != nil {
			return err
		}
		nazalog.Infof("payload format: %s", payloadFormat.String())
	}

	p := logic.NewPlayer(config, payloadFormat)
	defer p.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if config.Stream.LowerTransport == rtsp.LowerTransportTcp {
		conn, err := dialInterleaved(config.Stream)
		if err != nil {
			return err
		}
		if config.Session.RtcpSupported && len(config.Stream.InterleavedChannels) > 1 {
			p.Session().SetReportWriter(conn, config.Stream.InterleavedChannels[1])
		}
		g.Go(func() error {
			err := p.FeedInterleaved(conn)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			return conn.Close()
		})
	}

	p.Start()

	g.Go(func() error {
		return p.RunLoop(ctx)
	})
	g.Go(func() error {
		base.RunSignalHandler(ctx, cancel)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		p.Stop()
		return nil
	})

	return g.Wait()
}

// dialInterleaved 信令已经在外部完成，这里只负责接收interleaved数据
func dialInterleaved(config logic.StreamConfig) (connection.Connection, error) {
	addr := config.InterleavedAddr
	if addr == "" {
		urlCtx, err := base.ParseRtspUrl(config.Url)
		if err != nil {
			return nil, err
		}
		addr = urlCtx.HostWithPort
	}

	nazalog.Debugf("> tcp connect. addr=%s", addr)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	nazalog.Debugf("< tcp connect. laddr=%s, raddr=%s", conn.LocalAddr().String(), conn.RemoteAddr().String())
	return connection.New(conn, func(option *connection.Option) {
		option.ReadBufSize = readBufSize
	}), nil
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.LalplayFullInfo)
		os.Exit(0)
	}
	if *cf == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/lalplay -c ./conf/lalplay.conf.json
`)
		os.Exit(1)
	}
	return *cf
}
