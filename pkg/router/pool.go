package router

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"swap-quoter/pkg/types"
)

var (
	// basisPointDivisor is 100% in basis points.
	basisPointDivisor = big.NewInt(10000)

	ErrNoRoute               = errors.New("no route found")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
	ErrInvalidPool           = errors.New("invalid pool")
)

// PoolSpec is a pool entry as written in a snapshot file
type PoolSpec struct {
	Address  string `yaml:"address"`
	ChainID  int    `yaml:"chain_id"`
	Protocol string `yaml:"protocol"`
	Token0   string `yaml:"token0"`
	Token1   string `yaml:"token1"`
	Reserve0 string `yaml:"reserve0"`
	Reserve1 string `yaml:"reserve1"`
	FeeBps   uint16 `yaml:"fee_bps"`
}

// Snapshot is the on-disk pool list
type Snapshot struct {
	Pools []PoolSpec `yaml:"pools"`
}

// Pool is a constant-product pool with parsed reserves
type Pool struct {
	Address  common.Address
	ChainID  int
	Protocol types.Protocol
	Token0   common.Address
	Token1   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
	FeeBps   uint16
}

// LoadSnapshot reads a YAML pool snapshot.
func LoadSnapshot(path string) ([]Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pool snapshot: %w", err)
	}
	return ParsePools(snap.Pools)
}

// ParsePools validates snapshot entries.
func ParsePools(specs []PoolSpec) ([]Pool, error) {
	pools := make([]Pool, 0, len(specs))
	for i, spec := range specs {
		p, err := spec.parse()
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, spec.Address, err)
		}
		pools = append(pools, p)
	}
	return pools, nil
}

func (s PoolSpec) parse() (Pool, error) {
	for _, addr := range []string{s.Address, s.Token0, s.Token1} {
		if !common.IsHexAddress(addr) {
			return Pool{}, fmt.Errorf("%w: bad address %q", ErrInvalidPool, addr)
		}
	}
	if s.ChainID <= 0 {
		return Pool{}, fmt.Errorf("%w: chain id required", ErrInvalidPool)
	}
	r0, ok := new(big.Int).SetString(s.Reserve0, 10)
	if !ok || r0.Sign() < 0 {
		return Pool{}, fmt.Errorf("%w: bad reserve0 %q", ErrInvalidPool, s.Reserve0)
	}
	r1, ok := new(big.Int).SetString(s.Reserve1, 10)
	if !ok || r1.Sign() < 0 {
		return Pool{}, fmt.Errorf("%w: bad reserve1 %q", ErrInvalidPool, s.Reserve1)
	}
	if s.FeeBps >= 10000 {
		return Pool{}, fmt.Errorf("%w: fee %d bps", ErrInvalidPool, s.FeeBps)
	}
	protocol := types.ProtocolV2
	if s.Protocol != "" {
		protocol = types.Protocol(strings.ToUpper(s.Protocol))
	}
	if protocol != types.ProtocolV2 {
		return Pool{}, fmt.Errorf("%w: unsupported protocol %q", ErrInvalidPool, s.Protocol)
	}
	t0, t1 := common.HexToAddress(s.Token0), common.HexToAddress(s.Token1)
	if t0 == t1 {
		return Pool{}, fmt.Errorf("%w: token0 == token1", ErrInvalidPool)
	}

	return Pool{
		Address:  common.HexToAddress(s.Address),
		ChainID:  s.ChainID,
		Protocol: protocol,
		Token0:   t0,
		Token1:   t1,
		Reserve0: r0,
		Reserve1: r1,
		FeeBps:   s.FeeBps,
	}, nil
}

// Has reports whether the pool trades token.
func (p Pool) Has(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Other returns the counterpart of token in the pool.
func (p Pool) Other(token common.Address) common.Address {
	if p.Token0 == token {
		return p.Token1
	}
	return p.Token0
}

// reserves returns the reserves ordered by direction.
func (p Pool) reserves(tokenIn common.Address) (reserveIn, reserveOut *big.Int) {
	if tokenIn == p.Token0 {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

// AmountOut is the output for amountIn. An empty pool yields zero.
func (p Pool) AmountOut(tokenIn common.Address, amountIn *big.Int) (*big.Int, error) {
	reserveIn, reserveOut := p.reserves(tokenIn)
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	feeMultiplier := new(big.Int).Sub(basisPointDivisor, big.NewInt(int64(p.FeeBps)))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator := new(big.Int).Mul(reserveOut, amountInWithFee)
	denominator := new(big.Int).Mul(reserveIn, basisPointDivisor)
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", ErrInvalidPool)
	}
	return numerator.Div(numerator, denominator), nil
}

// AmountIn is the input needed to receive amountOut.
func (p Pool) AmountIn(tokenIn common.Address, amountOut *big.Int) (*big.Int, error) {
	reserveIn, reserveOut := p.reserves(tokenIn)
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: requested %s, reserve %s", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	// amountIn = reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-fee)) + 1
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, basisPointDivisor)
	feeMultiplier := new(big.Int).Sub(basisPointDivisor, big.NewInt(int64(p.FeeBps)))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, feeMultiplier)
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", ErrInvalidPool)
	}
	amountIn := numerator.Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1)), nil
}
