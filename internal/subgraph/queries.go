package subgraph

const liquidityEventsQuery = `query LiquidityPositionSnapshots($pairAddress: String!, $skip: Int!, $first: Int!) {
  liquidityPositionSnapshots(
    where: { pair: $pairAddress }
    orderBy: block
    skip: $skip
    first: $first
  ) {
    block
    user {
      id
    }
    pair {
      token0 {
        symbol
      }
      token1 {
        symbol
      }
    }
    token0PriceUSD
    token1PriceUSD
    liquidityTokenBalance
    liquidityTokenTotalSupply
    reserveUSD
    reserve0
    reserve1
  }
}`

const pairInfoQuery = `query Pair($xorEth: String!, $xorVal: String!, $valEth: String!) {
  xorEth: pair(id: $xorEth) {
    reserve0
    reserve1
    reserveUSD
    token0 {
      symbol
    }
    token1 {
      symbol
    }
  }
  xorVal: pair(id: $xorVal) {
    reserve0
    reserve1
    reserveUSD
    token0 {
      symbol
    }
    token1 {
      symbol
    }
  }
  valEth: pair(id: $valEth) {
    reserve0
    reserve1
    reserveUSD
    token0 {
      symbol
    }
    token1 {
      symbol
    }
  }
}`

const pairReserveQuery = `query Pair($xorEth: String!, $xorVal: String!, $valEth: String!, $block: Int!) {
  xorEth: pair(id: $xorEth, block: { number: $block }) {
    reserveUSD
  }
  xorVal: pair(id: $xorVal, block: { number: $block }) {
    reserveUSD
  }
  valEth: pair(id: $valEth, block: { number: $block }) {
    reserveUSD
  }
}`

const userPositionsQuery = `query User($userAddress: String!, $pairAddresses: [String!]) {
  user(id: $userAddress) {
    liquidityPositions(where: { pair_in: $pairAddresses }) {
      id
      liquidityTokenBalance
      pair {
        totalSupply
        reserve0
        reserve1
        token0 {
          symbol
        }
        token1 {
          symbol
        }
      }
    }
  }
}`
