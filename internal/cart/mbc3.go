package cart

import (
	"encoding/binary"
	"time"
)

// nowUnix is the wall-clock source for RTC advancement; swappable in tests.
var nowUnix = time.Now().Unix

// MBC3 implements ROM/RAM banking plus the MBC1/MBC3-style real-time clock
// (games like Pokemon Crystal). Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
// - 4000-5FFF: 00-03 selects a RAM bank; 08-0C selects an RTC register
// - 6000-7FFF: a 0->1 transition latches the live RTC into the read-only copy
// - A000-BFFF: selected RAM bank, or the latched RTC register if one is selected
//
// Grounded on original_source/src/system/cartridge.rs's write_byte_mbc3/
// read_byte_mbc3 RTC register routing and original_source/src/system/rtc.rs's
// day-rollover/carry semantics, reimplemented against a lazily-advanced wall
// clock instead of a per-tick counter so the clock stays correct across
// save/load and host sleep.
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramBank    byte // 0..3 when a RAM bank is selected

	rtcSelect   byte // last RTC register selected (0x08-0x0C); used while rtcSelected
	rtcSelected bool

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9 bits
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	// Latched snapshot, refreshed on a 0->1 transition written to 6000-7FFF.
	latchSec, latchMin, latchHour byte
	latchDay                      uint16
	latchHalt, latchCarry         bool
	lastLatchWrite                byte
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

func (m *MBC3) Read(addr uint16) byte {
	m.advanceRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := m.romBank & 0x7F
		if bank == 0 {
			bank = 1
		}
		off := int(bank)*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSelected {
			return m.readLatchedRegister()
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readLatchedRegister() byte {
	switch m.rtcSelect {
	case 0x08:
		return m.latchSec
	case 0x09:
		return m.latchMin
	case 0x0A:
		return m.latchHour
	case 0x0B:
		return byte(m.latchDay & 0xFF)
	case 0x0C:
		v := byte((m.latchDay >> 8) & 0x01)
		if m.latchHalt {
			v |= 0x40
		}
		if m.latchCarry {
			v |= 0x80
		}
		return v
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.advanceRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 {
			m.ramBank = value
			m.rtcSelected = false
		} else if value >= 0x08 && value <= 0x0C {
			m.rtcSelect = value
			m.rtcSelected = true
		}
	case addr < 0x8000:
		if value == 0x01 && m.lastLatchWrite == 0x00 {
			m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
			m.latchDay, m.latchHalt, m.latchCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
		}
		m.lastLatchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.rtcSelected {
			m.writeLiveRegister(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank&0x03)*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeLiveRegister(value byte) {
	switch m.rtcSelect {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay & 0x100) | uint16(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
	}
}

// advanceRTC lazily rolls the live registers forward by however much wall
// time has passed since the last observation, so the clock stays correct
// without needing a tick every emulated cycle.
func (m *MBC3) advanceRTC() {
	now := nowUnix()
	if m.rtcHalt {
		m.lastRTCWallSec = now
		return
	}
	elapsed := now - m.lastRTCWallSec
	if elapsed <= 0 {
		return
	}
	m.lastRTCWallSec = now

	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay)*86400 + elapsed
	days := total / 86400
	rem := total % 86400
	m.rtcHour = byte((rem / 3600) % 24)
	m.rtcMin = byte((rem / 60) % 60)
	m.rtcSec = byte(rem % 60)
	if days > 0x1FF {
		m.rtcCarry = true
		days %= 0x200
	}
	m.rtcDay = uint16(days)
}

// BatteryBacked: external RAM plus the RTC's live state and wall-clock
// reference point, so elapsed time keeps accruing correctly after reload.
func (m *MBC3) SaveRAM() []byte {
	m.advanceRTC()
	out := make([]byte, len(m.ram)+16)
	copy(out, m.ram)
	tail := out[len(m.ram):]
	tail[0] = m.rtcSec
	tail[1] = m.rtcMin
	tail[2] = m.rtcHour
	binary.BigEndian.PutUint16(tail[3:5], m.rtcDay)
	var flags byte
	if m.rtcHalt {
		flags |= 0x01
	}
	if m.rtcCarry {
		flags |= 0x02
	}
	tail[5] = flags
	binary.BigEndian.PutUint64(tail[6:14], uint64(m.lastRTCWallSec))
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) < 16 {
		copy(m.ram, data)
		return
	}
	ramLen := len(data) - 16
	copy(m.ram, data[:ramLen])
	tail := data[ramLen:]
	m.rtcSec = tail[0]
	m.rtcMin = tail[1]
	m.rtcHour = tail[2]
	m.rtcDay = binary.BigEndian.Uint16(tail[3:5])
	m.rtcHalt = tail[5]&0x01 != 0
	m.rtcCarry = tail[5]&0x02 != 0
	m.lastRTCWallSec = int64(binary.BigEndian.Uint64(tail[6:14]))
	m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
	m.latchDay, m.latchHalt, m.latchCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
}

// RTCBacked: the .rtc file records only the wall-clock zero-point, so a
// fresh process can recompute elapsed time even if SaveRAM was never called.
func (m *MBC3) SaveRTC() []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(m.lastRTCWallSec))
	return out
}

func (m *MBC3) LoadRTC(data []byte) {
	if len(data) < 8 {
		return
	}
	m.lastRTCWallSec = int64(binary.BigEndian.Uint64(data))
}
