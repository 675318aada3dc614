package model

import "fmt"

// Protocol identifies one of the two DEX protocols the game covers.
type Protocol uint8

const (
	ProtocolUniswap Protocol = iota
	ProtocolMooniswap
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUniswap:
		return "uniswap"
	case ProtocolMooniswap:
		return "mooniswap"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// Pair identifies one of the three trading pairs. Token0 is always the
// non-quote asset: XOR for XOR/ETH and XOR/VAL, VAL for VAL/ETH.
type Pair uint8

const (
	PairXORETH Pair = iota
	PairXORVAL
	PairVALETH
)

func (p Pair) String() string {
	switch p {
	case PairXORETH:
		return "xor-eth"
	case PairXORVAL:
		return "xor-val"
	case PairVALETH:
		return "val-eth"
	default:
		return fmt.Sprintf("pair(%d)", uint8(p))
	}
}

// ParsePair maps a stored pair name back to its enum value.
func ParsePair(name string) (Pair, error) {
	switch name {
	case "xor-eth":
		return PairXORETH, nil
	case "xor-val":
		return PairXORVAL, nil
	case "val-eth":
		return PairVALETH, nil
	default:
		return 0, fmt.Errorf("unknown pair: %s", name)
	}
}

// ParseProtocol maps a stored protocol name back to its enum value.
func ParseProtocol(name string) (Protocol, error) {
	switch name {
	case "uniswap":
		return ProtocolUniswap, nil
	case "mooniswap":
		return ProtocolMooniswap, nil
	default:
		return 0, fmt.Errorf("unknown protocol: %s", name)
	}
}

// PoolID names one pool: a trading pair on one protocol.
type PoolID struct {
	Protocol Protocol
	Pair     Pair
}

func (id PoolID) String() string {
	return id.Protocol.String() + ":" + id.Pair.String()
}

// AllPairs returns the pairs in the fixed processing order.
func AllPairs() []Pair {
	return []Pair{PairXORETH, PairXORVAL, PairVALETH}
}

// AllProtocols returns the protocols in the fixed processing order.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolUniswap, ProtocolMooniswap}
}

// AllPools enumerates the six pools, protocol-major, in processing order.
func AllPools() []PoolID {
	pools := make([]PoolID, 0, 6)
	for _, protocol := range AllProtocols() {
		for _, pair := range AllPairs() {
			pools = append(pools, PoolID{Protocol: protocol, Pair: pair})
		}
	}
	return pools
}
