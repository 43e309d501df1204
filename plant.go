// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package givenergy

import "sync"

// MaxBatteries is the highest number of battery packs a plant can report,
// one per slave address 0x32 through 0x37.
const MaxBatteries = 6

// Plant aggregates the register caches of every device behind one data
// adapter: the inverter at 0x32 plus up to MaxBatteries battery packs at
// consecutive addresses. Safe for concurrent use; the client's receive loop
// updates it while callers read snapshots.
type Plant struct {
	mu sync.RWMutex

	registerCaches map[uint8]*RegisterCache

	// number of additional holding register pages confirmed readable
	// beyond the base three, probed during plant detection
	additionalHoldingPages []uint16

	inverterSerialNumber    string
	dataAdapterSerialNumber string
	numberBatteries         int
}

// NewPlant creates a plant with an empty inverter cache.
func NewPlant() *Plant {
	return &Plant{
		registerCaches: map[uint8]*RegisterCache{
			SlaveAddrBatteryBase: NewRegisterCache(),
		},
	}
}

// Update folds one incoming message into the plant state. Non-transparent
// messages, null responses, error responses and corrupt writes targeting
// register 0 are ignored. Responses addressed to the cloud (0x11) or mobile
// app (0x00) pseudo-devices describe the inverter and land in its cache.
func (p *Plant) Update(pdu PDU) {
	resp, ok := pdu.(TransparentResponse)
	if !ok {
		logf("plant: ignoring non-transparent message %s", pdu)
		return
	}
	if _, null := resp.(*NullResponse); null {
		return
	}
	if resp.IsError() {
		logf("plant: ignoring error response %s", resp)
		return
	}

	slave := resp.SlaveAddress()
	if slave == SlaveAddrInverter || slave == SlaveAddrMobileApp {
		slave = SlaveAddrBatteryBase
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cache, ok := p.registerCaches[slave]
	if !ok {
		logf("plant: first sighting of slave address 0x%02x", slave)
		cache = NewRegisterCache()
		p.registerCaches[slave] = cache
	}

	p.inverterSerialNumber = resp.InverterSerial()
	p.dataAdapterSerialNumber = resp.AdapterSerial()

	switch r := resp.(type) {
	case *ReadRegistersResponse:
		if r.IsSuspicious() {
			return
		}
		bank := BankInput
		if r.TransparentFunctionCode() == TransparentFuncReadHolding {
			bank = BankHolding
		}
		for idx, v := range r.Registers() {
			cache.Set(Register{Bank: bank, Index: idx}, v)
		}
	case *WriteHoldingRegisterResponse:
		if r.Register == 0 {
			logf("plant: ignoring likely corrupt write response %s", r)
			return
		}
		cache.Set(HR(r.Register), r.Value)
	}
}

// DetectBatteries counts the consecutive battery addresses from 0x32 that
// hold a decodable pack serial number, and fixes the battery count there.
func (p *Plant) DetectBatteries() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for i := 0; i < MaxBatteries; i++ {
		cache, ok := p.registerCaches[SlaveAddrBatteryBase+uint8(i)]
		if !ok || !NewBattery(cache).IsValid() {
			break
		}
		n++
	}
	p.numberBatteries = n
	return n
}

// NumberBatteries returns the count fixed by the last DetectBatteries call.
func (p *Plant) NumberBatteries() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.numberBatteries
}

// Inverter returns the inverter view over the 0x32 cache.
func (p *Plant) Inverter() Inverter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewInverter(p.registerCaches[SlaveAddrBatteryBase])
}

// Batteries returns one view per detected battery pack.
func (p *Plant) Batteries() []Battery {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Battery, 0, p.numberBatteries)
	for i := 0; i < p.numberBatteries; i++ {
		cache, ok := p.registerCaches[SlaveAddrBatteryBase+uint8(i)]
		if !ok {
			break
		}
		out = append(out, NewBattery(cache))
	}
	return out
}

// Battery returns the view for one pack slot regardless of the detected
// count, creating an empty cache if the address was never seen.
func (p *Plant) Battery(slot int) Battery {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := SlaveAddrBatteryBase + uint8(slot)
	cache, ok := p.registerCaches[addr]
	if !ok {
		cache = NewRegisterCache()
		p.registerCaches[addr] = cache
	}
	return NewBattery(cache)
}

// InverterSerialNumber is taken from the most recent transparent response.
func (p *Plant) InverterSerialNumber() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inverterSerialNumber
}

// DataAdapterSerialNumber is taken from the most recent transparent response.
func (p *Plant) DataAdapterSerialNumber() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dataAdapterSerialNumber
}

// SetAdditionalHoldingPages records which holding register pages beyond the
// base set answered during detection.
func (p *Plant) SetAdditionalHoldingPages(bases []uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.additionalHoldingPages = append([]uint16(nil), bases...)
}

// AdditionalHoldingPages returns the extra holding register pages to include
// in refresh cycles.
func (p *Plant) AdditionalHoldingPages() []uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]uint16(nil), p.additionalHoldingPages...)
}
