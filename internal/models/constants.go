package models

const (
	StatusActive    = "予約中"
	StatusCancelled = "キャンセル済"
)

// Workbook layout. Month sheets are named "yy年M月"; the day header sits
// in row 8 starting at column C, device names in column B from row 9,
// and the occupancy grid begins at their intersection.
const (
	LogSheet = "予約ログ"

	HeaderRow      = 8
	DayStartCol    = 3
	DeviceCol      = 2
	DeviceStartRow = 9

	LogHeaderRow     = 1
	LogColID         = 1
	LogColCreatedAt  = 2
	LogColName       = 3
	LogColExtension  = 4
	LogColEmployeeID = 5
	LogColDevice     = 6
	LogColStart      = 7
	LogColEnd        = 8
	LogColStatus     = 9

	// MarkerPrefix tags an occupied grid cell; the full cell value is
	// MarkerPrefix + reservation ID.
	MarkerPrefix = "C:"
)

const (
	// DateLayout is used for log sheet dates and chat date input.
	DateLayout = "2006-01-02"

	// TimestampLayout is the log sheet creation timestamp (local time).
	TimestampLayout = "2006-01-02T15:04:05"

	// MaxListEntries caps reservation listings in chat replies.
	MaxListEntries = 10
)

// LogHeaders is the fixed column order of the reservation log sheet.
var LogHeaders = []string{
	"予約ID", "予約日時", "予約者名", "内線番号", "職番",
	"デモ機名", "予約開始日", "予約終了日", "ステータス",
}
