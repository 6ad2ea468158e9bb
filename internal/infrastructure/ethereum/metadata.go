/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
)

const governanceTokenABI = `[
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var tokenABI = mustParseABI(governanceTokenABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse token abi: %v", err))
	}
	return parsed
}

// TokenMetadata is what the governance token contract reports about itself.
type TokenMetadata struct {
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// ContractCaller runs read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MetadataFetcher checks configured DAOs against their token contracts.
type MetadataFetcher struct {
	caller ContractCaller
	logger *zap.Logger
}

func NewMetadataFetcher(caller ContractCaller, logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		caller: caller,
		logger: logger,
	}
}

// FetchMetadata reads symbol, decimals and total supply of a token.
// Only decimals are required; the other fields are best effort.
func (f *MetadataFetcher) FetchMetadata(ctx context.Context, tokenAddress string) (*TokenMetadata, error) {
	token := common.HexToAddress(tokenAddress)
	meta := &TokenMetadata{Symbol: "UNK"}

	out, err := f.call(ctx, token, "decimals")
	if err != nil {
		return nil, fmt.Errorf("decimals of %s: %w", tokenAddress, err)
	}
	decimals, err := tokenABI.Unpack("decimals", out)
	if err != nil {
		return nil, fmt.Errorf("decimals of %s: %w", tokenAddress, err)
	}
	d, ok := decimals[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("decimals of %s: unexpected type %T", tokenAddress, decimals[0])
	}
	meta.Decimals = d

	if out, err := f.call(ctx, token, "symbol"); err == nil {
		if symbol, ok := decodeSymbol(out); ok {
			meta.Symbol = symbol
		}
	} else {
		f.logger.Debug("Token symbol unavailable", zap.String("token", tokenAddress), zap.Error(err))
	}

	if out, err := f.call(ctx, token, "totalSupply"); err == nil {
		if supply, err := tokenABI.Unpack("totalSupply", out); err == nil {
			meta.TotalSupply, _ = supply[0].(*big.Int)
		}
	}

	return meta, nil
}

// VerifyDAO fails when the token reports different decimals than dao is
// configured with. An unreachable contract is logged and tolerated.
func (f *MetadataFetcher) VerifyDAO(ctx context.Context, dao config.DAO) error {
	meta, err := f.FetchMetadata(ctx, dao.TokenAddress)
	if err != nil {
		f.logger.Warn("Skipping token verification",
			zap.String("dao", string(dao.ID)),
			zap.Error(err),
		)
		return nil
	}

	if int(meta.Decimals) != dao.Decimals {
		return fmt.Errorf("dao %s: token %s reports %d decimals, configured %d",
			dao.ID, dao.TokenAddress, meta.Decimals, dao.Decimals)
	}

	fields := []zap.Field{
		zap.String("dao", string(dao.ID)),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
	}
	if meta.TotalSupply != nil {
		fields = append(fields, zap.String("onchain_total_supply", meta.TotalSupply.String()))
	}
	f.logger.Info("Verified governance token", fields...)
	return nil
}

func (f *MetadataFetcher) call(ctx context.Context, token common.Address, method string) ([]byte, error) {
	input, err := tokenABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := f.caller.CallContract(ctx, token, input)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return data", method)
	}
	return out, nil
}

// decodeSymbol accepts the standard string return as well as the bytes32
// symbols of early tokens such as MKR.
func decodeSymbol(out []byte) (string, bool) {
	if values, err := tokenABI.Unpack("symbol", out); err == nil {
		if s, ok := values[0].(string); ok && s != "" {
			return strings.TrimRight(s, "\x00"), true
		}
	}
	if len(out) != 32 {
		return "", false
	}
	raw := bytes.TrimRight(out, "\x00")
	if !isPrintableASCII(raw) {
		return "", false
	}
	return string(raw), true
}

func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return false
		}
	}
	return len(data) > 0
}
