package telegram

// Wire types for the slice of the Bot API this service consumes. Field sets
// are intentionally partial.

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64        `json:"message_id"`
	From      *User        `json:"from"`
	Chat      Chat         `json:"chat"`
	Text      string       `json:"text"`
	Caption   string       `json:"caption"`
	Photo     []PhotoSize  `json:"photo"`
	Video     *Video       `json:"video"`
	Audio     *Audio       `json:"audio"`
	Animation *Animation   `json:"animation"`
	Document  *Document    `json:"document"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

type Video struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Audio struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Title    string `json:"title"`
	MIMEType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Animation struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// File is the getFile result: the downloadable reference for an attachment.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}
