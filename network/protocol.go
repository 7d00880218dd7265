package network

// Client to server.
const (
	MsgTypeHeartbeat = 1
	MsgTypeJoinRoom  = 101
	MsgTypeLeaveRoom = 102
	MsgTypeAddBot    = 103
	MsgTypeSetState  = 201
	MsgTypeBoard     = 202
	MsgTypeGameOver  = 203
)

// Relayed between participants, in both directions.
const (
	MsgTypeSpecial = 210
	MsgTypeLines   = 211
)

// Server to client.
const (
	MsgTypeJoined    = 301
	MsgTypeRoomState = 302
	// MsgTypeBoardState carries one participant's board when the room
	// document is too large for a single frame.
	MsgTypeBoardState = 303
	MsgTypeError      = 399
)
