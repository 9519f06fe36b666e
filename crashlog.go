package crashlog

import (
	"fmt"
	"strings"
)

// Mode is the interaction mode of the reporter, i.e how (or whether) the user
// is told about a crash.
type Mode int32

const (
	ModeSilent Mode = iota
	ModeToast
	ModeNotification
)

// String returns the tag used for the mode in report files.
func (m Mode) String() string {
	switch m {
	case ModeSilent:
		return "silent"
	case ModeToast:
		return "toast"
	case ModeNotification:
		return "notif"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Set implements flag.Value.
func (m *Mode) Set(raw string) error {
	v, err := ParseMode(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode returns the mode for its textual representation. Both the tags
// used in report files and the long forms are accepted.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "silent":
		return ModeSilent, nil
	case "toast":
		return ModeToast, nil
	case "notif", "notification":
		return ModeNotification, nil
	default:
		return ModeSilent, fmt.Errorf("unknown interaction mode %q", raw)
	}
}

// Keys of the report entries, as written in the report files.
const (
	KeyVersionName      = "VersionName"
	KeyPackageName      = "PackageName"
	KeyPhoneModel       = "PhoneModel"
	KeyAndroidVersion   = "AndroidVersion"
	KeyBoard            = "BOARD"
	KeyBrand            = "BRAND"
	KeyDevice           = "DEVICE"
	KeyDisplay          = "DISPLAY"
	KeyFingerprint      = "FINGERPRINT"
	KeyModel            = "MODEL"
	KeyProduct          = "PRODUCT"
	KeyTags             = "TAGS"
	KeyTime             = "TIME"
	KeyType             = "TYPE"
	KeyStartAppTime     = "StartAppTime"
	KeyCrashAppTime     = "CrashAppTime"
	KeyTotalMemSize     = "TotalMemSize"
	KeyAvailableMemSize = "AvaliableMemSize" // spelling of existing report files
	KeyVersionCode      = "VersionCode"
	KeyStartMemSize     = "StartMemSize"
	KeyCustomData       = "CustomData"
	KeyStackTrace       = "StackTrace"
	KeyReportMode       = "report_mode"
)

// Summary of a saved report as indexed and served by the viewer service.
type Summary struct {
	Name        string `json:"name"`
	Mode        string `json:"mode"`
	Date        string `json:"date"`
	PackageName string `json:"package_name"`
	VersionName string `json:"version_name"`
	Model       string `json:"model"`
	Message     string `json:"message"`
	Trace       string `json:"trace"`
	CustomData  string `json:"custom_data"`
}

// Notification is the pending crash notification, if any.
type Notification struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Error type for API return values.
type Error struct {
	Err string `json:"error"`
}

// Pair is a custom key-value pair attached to the reports by the host
// application.
type Pair struct {
	Key   string
	Value string
}

// SearchResult is returned by the search endpoint of the viewer service.
type SearchResult struct {
	Results []Summary `json:"results"`
	Total   uint64    `json:"total"`
}
