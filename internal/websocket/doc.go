// Package websocket implements the server side of RFC 6455.
//
// Accept checks an upgrade request and writes the 101 response; the
// returned Conn runs its read loop in Serve on a goroutine of its own. The
// loop reassembles fragmented messages, answers pings, validates UTF-8 text
// and inflates permessage-deflate messages (RFC 7692, no context takeover)
// before handing them to the endpoint Handler. Control frames are handled
// as they arrive, even between the fragments of a data message.
//
// Protocol violations close the connection with 1002, invalid text with
// 1007 and oversized messages with 1009. Once a close frame has been sent
// no further message reaches the handler.
package websocket
