package db

// SchemaSQL defines the conversation and offer tables.
// Turns live inside the conversation document so appends keep their order;
// offers are separate records keyed by [conversation, offer id] so they can be
// updated in place.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS identity ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS version ON conversation TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS turns ON conversation TYPE array<object> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON conversation TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- OFFER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS offer SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS conversation ON offer TYPE string;
    DEFINE FIELD IF NOT EXISTS offer_id ON offer TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON offer TYPE string ASSERT $value IN ["PENDING", "FULFILLED", "DECLINED", "EXPIRED"];
    DEFINE FIELD IF NOT EXISTS created_at ON offer TYPE datetime;
    DEFINE FIELD IF NOT EXISTS updated_at ON offer TYPE datetime;

    DEFINE INDEX IF NOT EXISTS offer_conversation ON offer FIELDS conversation;
    DEFINE INDEX IF NOT EXISTS offer_state ON offer FIELDS conversation, state;
`
