package domain

type RollupKind uint8

const (
	RollupNone RollupKind = iota
	RollupOPStack
	RollupArbitrum
)

type ChainInfo struct {
	ID            ChainID
	Name          string
	NativeSymbol  string
	NativeNames   []string
	WrappedNative Token
	USDStable     Token
	BaseTokens    []Token
	Rollup        RollupKind
}

// NativeCurrency returns the chain's native currency as a Token.
func (c ChainInfo) NativeCurrency() Token {
	return Token{
		ChainID:  c.ID,
		Decimals: 18,
		Symbol:   c.NativeSymbol,
		Name:     c.NativeSymbol,
		IsNative: true,
	}
}

var (
	mainnetWETH = NewToken(ChainMainnet, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18, "WETH", "Wrapped Ether")
	mainnetUSDC = NewToken(ChainMainnet, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6, "USDC", "USD Coin")
	mainnetUSDT = NewToken(ChainMainnet, "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6, "USDT", "Tether USD")
	mainnetDAI  = NewToken(ChainMainnet, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI", "Dai Stablecoin")
	mainnetWBTC = NewToken(ChainMainnet, "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", 8, "WBTC", "Wrapped BTC")

	optimismWETH = NewToken(ChainOptimism, "0x4200000000000000000000000000000000000006", 18, "WETH", "Wrapped Ether")
	optimismUSDC = NewToken(ChainOptimism, "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", 6, "USDC", "USD Coin")

	baseWETH = NewToken(ChainBase, "0x4200000000000000000000000000000000000006", 18, "WETH", "Wrapped Ether")
	baseUSDC = NewToken(ChainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6, "USDC", "USD Coin")

	arbitrumWETH = NewToken(ChainArbitrum, "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18, "WETH", "Wrapped Ether")
	arbitrumUSDC = NewToken(ChainArbitrum, "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6, "USDC", "USD Coin")
)

var chains = map[ChainID]ChainInfo{
	ChainMainnet: {
		ID:            ChainMainnet,
		Name:          "mainnet",
		NativeSymbol:  "ETH",
		NativeNames:   []string{"ETH", "ETHER"},
		WrappedNative: mainnetWETH,
		USDStable:     mainnetUSDC,
		BaseTokens:    []Token{mainnetWETH, mainnetUSDC, mainnetUSDT, mainnetDAI, mainnetWBTC},
		Rollup:        RollupNone,
	},
	ChainOptimism: {
		ID:            ChainOptimism,
		Name:          "optimism",
		NativeSymbol:  "ETH",
		NativeNames:   []string{"ETH", "ETHER"},
		WrappedNative: optimismWETH,
		USDStable:     optimismUSDC,
		BaseTokens:    []Token{optimismWETH, optimismUSDC},
		Rollup:        RollupOPStack,
	},
	ChainBase: {
		ID:            ChainBase,
		Name:          "base",
		NativeSymbol:  "ETH",
		NativeNames:   []string{"ETH", "ETHER"},
		WrappedNative: baseWETH,
		USDStable:     baseUSDC,
		BaseTokens:    []Token{baseWETH, baseUSDC},
		Rollup:        RollupOPStack,
	},
	ChainArbitrum: {
		ID:            ChainArbitrum,
		Name:          "arbitrum",
		NativeSymbol:  "ETH",
		NativeNames:   []string{"ETH", "ETHER"},
		WrappedNative: arbitrumWETH,
		USDStable:     arbitrumUSDC,
		BaseTokens:    []Token{arbitrumWETH, arbitrumUSDC},
		Rollup:        RollupArbitrum,
	},
}

func ChainByID(id ChainID) (ChainInfo, bool) {
	info, ok := chains[id]
	return info, ok
}

func SupportedChains() []ChainID {
	return []ChainID{ChainMainnet, ChainOptimism, ChainBase, ChainArbitrum}
}

func (c ChainID) IsRollup() bool {
	info, ok := chains[c]
	return ok && info.Rollup != RollupNone
}
