package postgres

// Decimal columns are stored as TEXT so precision never silently changes in
// transit; arithmetic beyond the reward accrual happens in the application.
const schema = `
CREATE TABLE IF NOT EXISTS pool_events (
	id                BIGSERIAL PRIMARY KEY,
	protocol          TEXT        NOT NULL,
	pair              TEXT        NOT NULL,
	block             BIGINT      NOT NULL,
	user_address      TEXT        NOT NULL,
	lp_balance        TEXT        NOT NULL,
	lp_total_supply   TEXT        NOT NULL,
	reserve_usd       TEXT        NOT NULL,
	reserve0          TEXT        NOT NULL,
	reserve1          TEXT        NOT NULL,
	token0_price_usd  TEXT        NOT NULL,
	token1_price_usd  TEXT        NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (protocol, pair, user_address, block)
);

CREATE INDEX IF NOT EXISTS idx_pool_events_pool_block
	ON pool_events (protocol, pair, block);

CREATE TABLE IF NOT EXISTS liquidity_snapshots (
	block         BIGINT      PRIMARY KEY,
	liquidity_usd TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	address    TEXT   PRIMARY KEY,
	last_block BIGINT NOT NULL DEFAULT 0,
	reward     TEXT   NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS game_info (
	id                   INT         PRIMARY KEY,
	status               INT         NOT NULL,
	pswap                TEXT        NOT NULL,
	start_block          BIGINT      NOT NULL,
	last_block           BIGINT      NOT NULL,
	formula_update_block BIGINT      NOT NULL,
	last_update          TIMESTAMPTZ NOT NULL
);
`
