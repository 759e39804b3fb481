package device

// Linux 输入子系统常量，取值与 <linux/input-event-codes.h> 一致。
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvAbs uint16 = 0x03

	SynReport uint16 = 0

	BusUSB uint16 = 0x03

	BtnSouth  uint16 = 0x130 // A
	BtnEast   uint16 = 0x131 // B
	BtnNorth  uint16 = 0x133 // X
	BtnWest   uint16 = 0x134 // Y
	BtnSelect uint16 = 0x13a
	BtnStart  uint16 = 0x13b

	AbsX uint16 = 0x00
	AbsY uint16 = 0x01
)

// AxisInfo 描述一个绝对轴的取值范围。
type AxisInfo struct {
	Code    uint16
	Minimum int32
	Maximum int32
	Fuzz    int32
	Flat    int32
}

// Profile 描述虚拟设备向内核声明的身份与能力。
type Profile struct {
	Vendor  uint16
	Product uint16
	Version uint16
	Keys    []uint16
	Axes    []AxisInfo
}

// Xbox360Profile 模拟 Xbox 360 手柄（USB 045e:028e）。
func Xbox360Profile() Profile {
	stick := func(code uint16) AxisInfo {
		return AxisInfo{Code: code, Minimum: -32768, Maximum: 32767, Fuzz: 16, Flat: 128}
	}
	return Profile{
		Vendor:  0x045e,
		Product: 0x028e,
		Version: 0x0110,
		Keys:    []uint16{BtnSouth, BtnEast, BtnNorth, BtnWest, BtnStart, BtnSelect},
		Axes:    []AxisInfo{stick(AbsX), stick(AbsY)},
	}
}
