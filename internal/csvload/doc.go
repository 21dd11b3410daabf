// Package csvload implements CSV ingestion for COPY FROM and LOAD CSV:
// a state-machine field parser shared by serial and parallel modes, a
// block-parallel scanner, and the per-block error handler that resolves
// global line numbers once every preceding block has finished parsing.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         Copy / LoadCSV ops          │
//	└─────────────────────────────────────┘
//	                 │ ReadRow / HandleRowError
//	                 ▼
//	┌─────────────────────────────────────┐
//	│              Reader                 │
//	│   (serial machine | block fan-out)  │
//	└─────────────────────────────────────┘
//	        │                   │
//	        ▼                   ▼
//	┌──────────────┐    ┌───────────────┐
//	│ ErrorHandler │    │ WarningContext│
//	│  (per block) │    │ (per client)  │
//	└──────────────┘    └───────────────┘
//
// # Parallel scanning
//
// A file splits into fixed-size blocks. Every block except the first
// aligns itself by scanning forward to the next newline; the first block
// strips a UTF-8 BOM and optionally the header row. A row belongs to the
// block its first byte falls in, so a block keeps parsing past its end to
// finish the row it started. Quoted newlines are legal in serial mode
// only; a parallel block cannot safely contain one.
//
// # Error handling
//
// Conversion failures are reported per block with the row's byte range.
// The true line number of a failure is only known once every preceding
// block has finished counting its lines, so errors cache until their
// prefix completes. With IGNORE_ERRORS the cached errors become warnings
// observable through SHOW WARNINGS; otherwise the earliest resolvable
// error aborts the copy, with the offending line re-read from the file.
package csvload
