// Package protocol implements the encoding of requests and the parsing of
// replies for RESP, the protocol that Disque (and Redis) speak with their
// clients.
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - every reply starts with a single type byte
// - bulk payloads are length prefixed and binary safe, they may contain `\r\n`
//
// === Requests
//
// A request is always sent as an array of bulk strings, the first element
// being the command name.
//
//   ```
//     *3\r\n
//     $6\r\n
//     QPEEK\r\n
//     $5\r\n
//     queue\r\n
//     $1\r\n
//     1\r\n
//   ```
//
// === Replies
//
// - `+` - a simple string, terminated by `\r\n` (e.g. `+OK\r\n`)
// - `-` - an error, the first word is the error code (e.g. `-PAUSED Queue paused\r\n`)
// - `:` - an integer (e.g. `:42\r\n`)
// - `$` - a bulk string, `$<len>\r\n<bytes>\r\n`. A negative length is a nil reply
// - `*` - an array, `*<count>\r\n` followed by count replies. A negative count is a nil reply
//
// Arrays nest, so a reply is decoded into a tree of Reply values.
//
// Errors reading from the underlying stream (EOF, short reads, timeouts) are
// reported as *ConnectionError. Errors in the shape of the data itself are
// reported as protocol errors (ErrUnknownReplyType, ErrMalformedLength,
// ErrMalformedInteger). Error replies sent by the server are reported as
// *ServerError, or *PausedError when the server refused to touch a paused queue.
//
package protocol
