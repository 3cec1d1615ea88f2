// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lalplay
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package upstream

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/q191201771/lalplay/pkg/base"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/naza/pkg/nazanet"
)

var _ DataSource = &UdpDataSinkSource{}

type UdpDataSinkSourceOption struct {
	// MaxPacketSize 单个udp包的最大长度
	MaxPacketSize int

	// ReadTimeoutMs 单次读取的超时时间，超时返回base.ErrUdpTimeout
	ReadTimeoutMs int

	// ConnPool 不为nil时，本地端口从端口池中分配
	ConnPool *nazanet.AvailUdpConnPool
}

type ModUdpDataSinkSourceOption func(option *UdpDataSinkSourceOption)

func defaultUdpDataSinkSourceOption() UdpDataSinkSourceOption {
	return UdpDataSinkSourceOption{
		MaxPacketSize: base.UdpMaxPacketSize,
		ReadTimeoutMs: base.UdpReadTimeoutMs,
	}
}

// UdpDataSinkSource 绑定本地udp端口，既可以读取数据，也可以向指定地址发送数据(比如打洞包)
type UdpDataSinkSource struct {
	uniqueKey string
	option    UdpDataSinkSourceOption

	mu        sync.Mutex
	conn      *nazanet.UdpConnection
	localPort int
	closed    nazaatomic.Bool

	remain []byte // 上次读取的包中没有被消费完的数据

	readPacketCount nazaatomic.Uint64
	dump            base.LogDump
}

func NewUdpDataSinkSource(modOptions ...ModUdpDataSinkSourceOption) *UdpDataSinkSource {
	option := defaultUdpDataSinkSourceOption()
	for _, fn := range modOptions {
		fn(&option)
	}
	uk := base.GenUkUdpSource()
	return newUdpDataSinkSource(uk, option)
}

func newUdpDataSinkSource(uniqueKey string, option UdpDataSinkSourceOption) *UdpDataSinkSource {
	Log.Infof("[%s] lifecycle new udp data source. option=%+v", uniqueKey, option)
	return &UdpDataSinkSource{
		uniqueKey: uniqueKey,
		option:    option,
		dump:      base.NewLogDump(Log, uniqueKey, dumpPacketMaxNum),
	}
}

func (s *UdpDataSinkSource) Open(spec DataSpec) error {
	host, port, err := spec.HostPort()
	if err != nil {
		return err
	}

	var rawConn *net.UDPConn
	if s.option.ConnPool != nil && port == 0 {
		rawConn, _, err = s.option.ConnPool.Acquire()
	} else {
		if !spec.IsFlagSet(FlagForceBoundLocalAddress) {
			host = ""
		}
		rawConn, err = listenUdp(host, port)
	}
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	return s.openWithConn(rawConn)
}

func (s *UdpDataSinkSource) openWithConn(rawConn *net.UDPConn) error {
	conn, err := nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.Conn = rawConn
		option.MaxReadPacketSize = s.option.MaxPacketSize
	})
	if err != nil {
		_ = rawConn.Close()
		return nazaerrors.Wrap(err)
	}

	s.mu.Lock()
	s.conn = conn
	if addr, ok := rawConn.LocalAddr().(*net.UDPAddr); ok {
		s.localPort = addr.Port
	}
	s.mu.Unlock()

	Log.Infof("[%s] udp data source opened. localPort=%d", s.uniqueKey, s.localPort)
	return nil
}

// Read 一次最多返回一个udp包的数据，<b>放不下时，剩余部分在下次Read时返回
func (s *UdpDataSinkSource) Read(b []byte) (int, error) {
	if len(s.remain) == 0 {
		packet, _, err := s.ReadPacket()
		if err != nil {
			return 0, err
		}
		s.remain = packet
	}
	n := copy(b, s.remain)
	s.remain = s.remain[n:]
	return n, nil
}

// ReadPacket 读取一个完整的udp包
//
// @return b: 内存块为独立新申请
//
func (s *UdpDataSinkSource) ReadPacket() (b []byte, raddr *net.UDPAddr, err error) {
	conn := s.getConn()
	if conn == nil {
		return nil, nil, base.ErrUpstreamNotOpened
	}
	if s.closed.Load() {
		return nil, nil, base.ErrUpstreamClosed
	}

	data, raddr, err := conn.ReadWithTimeout(s.option.ReadTimeoutMs)
	if err != nil {
		if s.closed.Load() {
			return nil, nil, base.ErrUpstreamClosed
		}
		if isTimeout(err) {
			return nil, nil, fmt.Errorf("%w. timeoutMs=%d", base.ErrUdpTimeout, s.option.ReadTimeoutMs)
		}
		return nil, nil, nazaerrors.Wrap(err)
	}

	b = make([]byte, len(data))
	copy(b, data)

	s.readPacketCount.Increment()
	if s.dump.ShouldDump() {
		s.dump.Outf("read udp packet. len=%d, raddr=%s", len(b), raddr.String())
	}
	return b, raddr, nil
}

func (s *UdpDataSinkSource) WriteTo(b []byte, host string, port int) error {
	conn := s.getConn()
	if conn == nil {
		return base.ErrUpstreamNotOpened
	}
	addr, err := resolveUdpAddr(host, port)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	return s.WriteToAddr(b, addr)
}

func (s *UdpDataSinkSource) WriteToAddr(b []byte, addr *net.UDPAddr) error {
	conn := s.getConn()
	if conn == nil {
		return base.ErrUpstreamNotOpened
	}
	return conn.Write2Addr(b, addr)
}

func (s *UdpDataSinkSource) LocalPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPort
}

func (s *UdpDataSinkSource) ReadPacketCount() uint64 {
	return s.readPacketCount.Load()
}

func (s *UdpDataSinkSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.closed.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closed.Store(true)
	s.mu.Unlock()

	Log.Infof("[%s] lifecycle dispose udp data source. readPacketCount=%d", s.uniqueKey, s.readPacketCount.Load())
	return conn.Dispose()
}

func (s *UdpDataSinkSource) getConn() *nazanet.UdpConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func listenUdp(host string, port int) (*net.UDPConn, error) {
	addr, err := resolveUdpAddr(host, port)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
