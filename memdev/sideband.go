package memdev

import "encoding/binary"

// Control and status register addresses of the link, as seen through the
// side-band endpoint. The local bank configures this die's end of the link;
// the remote bank is forwarded across the link to the peer die.
const (
	RegRemoteLinkCtrl uint64 = 0x60000000
	RegRemoteChipID   uint64 = 0x60000008
	RegRemoteTxCtrl   uint64 = 0x60000010
	RegRemoteRxCtrl   uint64 = 0x60000014

	RegLocalLinkCtrl uint64 = 0x70000000
	RegLocalReset    uint64 = 0x7000000C
	RegLocalTxCtrl   uint64 = 0x70000010
	RegLocalRxCtrl   uint64 = 0x70000014
)

// Bits of the tx/rx control registers.
const (
	CtrlEnable uint32 = 1 << 0
	CtrlCredit uint32 = 1 << 4
)

// LinkWidth8B is the link-control value that selects an 8-byte datapath,
// used when bringing up a 3D topology.
const LinkWidth8B uint32 = 0x40

// LinkState is a decoded view of the side-band register bank, for logging
// and monitoring. The registers themselves live in the device storage, so
// reads through the protocol always return what was written.
type LinkState struct {
	LinkCtrl  uint32 `json:"link_ctrl"`
	ChipID    uint32 `json:"chip_id"`
	TxEnabled bool   `json:"tx_enabled"`
	TxCredit  bool   `json:"tx_credit"`
	RxEnabled bool   `json:"rx_enabled"`
}

func (c *Comp) reg32(addr uint64) uint32 {
	return binary.LittleEndian.Uint32(c.storage.Read(addr, 4))
}

// LocalLinkState decodes the local register bank.
func (c *Comp) LocalLinkState() LinkState {
	return LinkState{
		LinkCtrl:  c.reg32(RegLocalLinkCtrl),
		TxEnabled: c.reg32(RegLocalTxCtrl)&CtrlEnable != 0,
		TxCredit:  c.reg32(RegLocalTxCtrl)&CtrlCredit != 0,
		RxEnabled: c.reg32(RegLocalRxCtrl)&CtrlEnable != 0,
	}
}

// RemoteLinkState decodes the remote register bank.
func (c *Comp) RemoteLinkState() LinkState {
	return LinkState{
		LinkCtrl:  c.reg32(RegRemoteLinkCtrl),
		ChipID:    c.reg32(RegRemoteChipID),
		TxEnabled: c.reg32(RegRemoteTxCtrl)&CtrlEnable != 0,
		TxCredit:  c.reg32(RegRemoteTxCtrl)&CtrlCredit != 0,
		RxEnabled: c.reg32(RegRemoteRxCtrl)&CtrlEnable != 0,
	}
}
