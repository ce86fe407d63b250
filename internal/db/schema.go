package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- USER TABLE (identity)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS email ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS password_hash ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS email_confirmed_at ON user TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS verification_token ON user TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON user TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_email ON user FIELDS email UNIQUE;
    DEFINE INDEX IF NOT EXISTS user_verification_token ON user FIELDS verification_token;

    -- ==========================================================================
    -- AUTH_SESSION TABLE (refresh tokens, keyed by token)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS auth_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON auth_session TYPE string;
    DEFINE FIELD IF NOT EXISTS expires_at ON auth_session TYPE datetime;
    DEFINE FIELD IF NOT EXISTS created_at ON auth_session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS auth_session_user ON auth_session FIELDS user_id;

    -- ==========================================================================
    -- PROFILE TABLE (one per user, keyed by user id)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS profile SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS full_name ON profile TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS onboarding_completed ON profile TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS user_preferences ON profile TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON profile TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON profile TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- CONVERSATION TABLE (chat sessions; messages are stored inline)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS messages ON conversation TYPE array<object> FLEXIBLE DEFAULT [];
    DEFINE FIELD IF NOT EXISTS last_updated ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user_updated ON conversation FIELDS user_id, last_updated;
`
