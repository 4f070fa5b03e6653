package mcpserver

const recordFormatURI = "ledger://record-format"

// RecordFormat describes record semantics for LLM consumers reading the
// ledger through MCP.
const RecordFormat = `# Ledger Record Format

A ledger is a set of record stores. Each store has a fixed capacity chosen
when it is created and never changes.

## Store

- ` + "`id`" + `: store ID (UUID).
- ` + "`max_records`" + `: the most records the store will ever hold (default 1000).
- ` + "`max_data_length`" + `: the longest record data in bytes (default 200).
- ` + "`count`" + `: records appended so far. Indices run from 0 to count-1.

## Record

- ` + "`index`" + `: position in the store, assigned on append and never reused.
- ` + "`author`" + `: 64 hex characters, the SHA-256 of the author's SSH ed25519 public key.
- ` + "`data`" + `: UTF-8 text up to max_data_length bytes.
- ` + "`timestamp`" + `: Unix seconds of the last append or update.
- ` + "`checksum`" + `: SHA-256 of data, useful for change detection.

## Rules

1. Records are only appended; none are ever deleted or reordered.
2. Only the author of a record may update it, and the author never changes.
3. A full store rejects appends; there is no resizing.
4. Writes require a signed HTTP request. The MCP tools are read-only.
`
