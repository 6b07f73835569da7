package store

// The schema itself lives in migrations/*.sql and is applied by goose on
// connect.
const (
	createUser = `INSERT INTO users (id, mnemonic, last_trade_index, created_at)
    VALUES (1, ?, 0, ?);`

	getMnemonic = `SELECT mnemonic FROM users WHERE id = 1;`

	getTradeIndex = `SELECT last_trade_index FROM users WHERE id = 1;`

	setTradeIndex = `UPDATE users SET last_trade_index = ? WHERE id = 1;`

	saveTrade = `INSERT INTO trades (order_id, trade_index, status, request_id, updated_at)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT (order_id) DO UPDATE SET
        trade_index = excluded.trade_index,
        status = excluded.status,
        request_id = excluded.request_id,
        updated_at = excluded.updated_at;`

	getActiveTrades = `SELECT order_id, trade_index FROM trades
    WHERE status NOT IN ('success', 'canceled', 'canceled-by-admin', 'settled-by-admin', 'expired')
    ORDER BY trade_index;`

	applyTradeSnapshot = `UPDATE trades SET
        status = ?,
        last_action = ?,
        counterparty = ?,
        sat_amount = ?,
        buyer_invoice = ?,
        updated_at = ?
    WHERE order_id = ?;`

	getTradeSnapshot = `SELECT order_id, trade_index, status, last_action, counterparty, sat_amount, buyer_invoice, updated_at
    FROM trades WHERE order_id = ?;`

	saveDispute = `INSERT INTO admin_disputes (
        dispute_id, order_id, kind, status, initiator_pubkey, buyer_pubkey, seller_pubkey,
        payment_method, amount, fiat_code, fiat_amount, premium, fee, routing_fee,
        buyer_invoice, taken_at, created_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (dispute_id) DO UPDATE SET
        status = excluded.status,
        buyer_pubkey = excluded.buyer_pubkey,
        seller_pubkey = excluded.seller_pubkey,
        taken_at = excluded.taken_at;`

	getDisputes = `SELECT dispute_id, order_id, kind, status, initiator_pubkey, buyer_pubkey, seller_pubkey,
        payment_method, amount, fiat_code, fiat_amount, premium, fee, routing_fee,
        buyer_invoice, taken_at, created_at
    FROM admin_disputes ORDER BY taken_at DESC;`

	getDispute = `SELECT dispute_id, order_id, kind, status, initiator_pubkey, buyer_pubkey, seller_pubkey,
        payment_method, amount, fiat_code, fiat_amount, premium, fee, routing_fee,
        buyer_invoice, taken_at, created_at
    FROM admin_disputes WHERE dispute_id = ?;`

	setDisputeStatus = `UPDATE admin_disputes SET status = ? WHERE dispute_id = ?;`

	getChatCursor = `SELECT last_seen FROM chat_cursors WHERE dispute_id = ? AND party = ?;`

	setChatCursor = `INSERT INTO chat_cursors (dispute_id, party, last_seen)
    VALUES (?, ?, ?)
    ON CONFLICT (dispute_id, party) DO UPDATE SET last_seen = excluded.last_seen
    WHERE excluded.last_seen > chat_cursors.last_seen;`

	getSharedKey = `SELECT secret_key FROM shared_keys WHERE dispute_id = ? AND party = ?;`

	setSharedKey = `INSERT INTO shared_keys (dispute_id, party, secret_key)
    VALUES (?, ?, ?)
    ON CONFLICT (dispute_id, party) DO UPDATE SET secret_key = excluded.secret_key;`
)
