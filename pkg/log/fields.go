// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameClientID  = "clientID"
	FieldNameRemote    = "remote"
	FieldNameDevice    = "device"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldClientID 返回客户端标识字段，identity 可以是任意 fmt.Stringer。
func FieldClientID(identity interface{ String() string }) zap.Field {
	return zap.Stringer(FieldNameClientID, identity)
}

// FieldRemote 返回对端地址字段。
func FieldRemote(addr string) zap.Field {
	return zap.String(FieldNameRemote, addr)
}

// FieldDevice 返回虚拟设备序号字段。
func FieldDevice(serial uint64) zap.Field {
	return zap.Uint64(FieldNameDevice, serial)
}
