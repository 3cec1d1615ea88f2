// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/q191201771/lalplay/pkg/base"
)

// DataSource 字节流数据源
//
// Close可以重复调用，也可以在另一个协程中调用，用于唤醒阻塞中的Read
//
type DataSource interface {
	Open(spec DataSpec) error
	Read(b []byte) (int, error)
	Close() error
}

const (
	// FlagForceBoundLocalAddress DataSpec.Uri中的地址作为本地地址绑定
	FlagForceBoundLocalAddress = 1 << 3
)

type DataSpec struct {
	Uri   string
	Flags int
}

func NewDataSpec(uri string, flags int) DataSpec {
	return DataSpec{
		Uri:   uri,
		Flags: flags,
	}
}

func (spec DataSpec) IsFlagSet(flag int) bool {
	return spec.Flags&flag == flag
}

// HostPort 从形如 udp://0.0.0.0:0 的uri中解析出地址
func (spec DataSpec) HostPort() (host string, port int, err error) {
	u, err := url.Parse(spec.Uri)
	if err != nil {
		return "", 0, fmt.Errorf("%w. invalid uri. uri=%s, err=%+v", base.ErrUpstream, spec.Uri, err)
	}
	host = u.Hostname()
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, fmt.Errorf("%w. invalid port. uri=%s", base.ErrUpstream, spec.Uri)
		}
	}
	return host, port, nil
}

func resolveUdpAddr(host string, port int) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}
