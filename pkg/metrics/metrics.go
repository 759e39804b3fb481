// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// gamepadNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	gamepadNamespace = "gamepad"

	sessionSubsystem    = "session"
	connectionSubsystem = "connection"
	deviceSubsystem     = "device"

	reasonLabelName = "reason"
	kindLabelName   = "kind"
	opLabelName     = "op"
)

// 拒绝原因标签值。
const (
	RejectReasonInvalidID = "invalid_client_id"
	RejectReasonLimit     = "limit_reached"
	RejectReasonDevice    = "device_create_failed"
)

var (
	SessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: gamepadNamespace,
		Subsystem: sessionSubsystem,
		Name:      "active",
		Help:      "当前注册表中的会话数量",
	})

	SessionCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: gamepadNamespace,
		Subsystem: sessionSubsystem,
		Name:      "created_total",
		Help:      "新建会话（及虚拟设备）的累计次数",
	})

	SessionRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: gamepadNamespace,
		Subsystem: sessionSubsystem,
		Name:      "rejected_total",
		Help:      "连接建立阶段被拒绝的次数",
	}, []string{reasonLabelName})

	SessionEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: gamepadNamespace,
		Subsystem: sessionSubsystem,
		Name:      "evicted_total",
		Help:      "因心跳超时被回收的会话数量",
	})

	ConnectionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: gamepadNamespace,
		Subsystem: connectionSubsystem,
		Name:      "active",
		Help:      "当前处于 Active 状态的连接数量",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: gamepadNamespace,
		Subsystem: connectionSubsystem,
		Name:      "messages_total",
		Help:      "按类型统计的入站消息数量",
	}, []string{kindLabelName})

	DeviceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: gamepadNamespace,
		Subsystem: deviceSubsystem,
		Name:      "errors_total",
		Help:      "虚拟设备操作失败次数",
	}, []string{opLabelName})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，多次调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(SessionActive)
		r.MustRegister(SessionCreated)
		r.MustRegister(SessionRejected)
		r.MustRegister(SessionEvicted)
		r.MustRegister(ConnectionActive)
		r.MustRegister(MessagesTotal)
		r.MustRegister(DeviceErrors)
		metricRegisterer = r
	})
}

// Handler 返回暴露 Registerer 中指标的 HTTP Handler。
// r 需要同时实现 prometheus.Gatherer（例如 *prometheus.Registry）。
func Handler(r prometheus.Registerer) http.Handler {
	if g, ok := r.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
