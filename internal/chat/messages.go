package chat

const (
	msgGreeting      = "こんにちは！デモ機予約Botです。お名前を教えてください。"
	msgAskName       = "お名前を教えてください。"
	msgAskExtension  = "内線番号を教えてください。"
	msgAskEmployeeID = "職番を教えてください。"
	msgCommandPrompt = "ご用件をどうぞ。「予約」「キャンセル」「確認」が使えます。"
	msgUnrecognized  = "すみません、わかりませんでした。" + msgCommandPrompt

	msgAskDeviceType = "デモ機の種類を教えてください。（例: FE）"
	msgAskDates      = "予約期間を「開始日,終了日」の形式で教えてください。（例: 2025-09-10,2025-09-12）"
	msgBadDates      = "日付形式が正しくありません。YYYY-MM-DD,YYYY-MM-DD の形式で入力してください。"
	msgDatesReversed = "開始日は終了日以前にしてください。"
	msgNoDevice      = "指定の期間に空いているデモ機が見つかりません。別の期間でお試しください。"
	msgBookAborted   = "予約を中止しました。" + msgCommandPrompt

	msgAskCancelID    = "キャンセルする予約IDを教えてください。"
	msgNoCancellable  = "キャンセル可能な予約はありません。"
	msgCancelAborted  = "キャンセルを中止しました。" + msgCommandPrompt
	msgYesNoPrompt    = "「はい」か「いいえ」でお答えください。"
	msgAlreadyDone    = "この予約はすでにキャンセル済です。"
	msgListHeader     = "あなたの予約一覧:"
	msgNoReservations = "予約はありません。"

	msgBusy     = "ただいま混み合っています。しばらくしてからもう一度お試しください。"
	msgInternal = "エラーが発生しました。しばらくしてからもう一度お試しください。"
)
