package models

// UserInfo is collected once per conversation and echoed back by the
// caller on every request; nothing is stored server-side.
type UserInfo struct {
	Name       string `json:"name"`
	Extension  string `json:"extension"`
	EmployeeID string `json:"employee_id"`
}

func (u UserInfo) Complete() bool {
	return u.Name != "" && u.Extension != "" && u.EmployeeID != ""
}
