package params

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/types"
)

// Derived parameter keys consumed by downstream scripts. Bit-exact contract;
// renaming any of these breaks user workflows.
const (
	SyncDateKey       = "syncDate"
	StartTimeStampKey = "start_time_stamp"
	EndTimeStampKey   = "end_time_stamp"
	StartTimeStampS   = "start_time_stamp_s"
	EndTimeStampS     = "end_time_stamp_s"

	// DateTimeKey is the schedule-time parameter the workflow engine
	// substitutes into scripts.
	DateTimeKey = "system.datetime"

	syncDateLayout = "2006-01-02"
	dateTimeLayout = "20060102150405"

	// endOfDayOffsetMillis spans from midnight to 23:59:59 of the same day.
	endOfDayOffsetMillis = 86399 * 1000
)

// BuildGlobalParamsMap deserializes the global parameter list and flattens
// it into a name/value map. When a syncDate parameter is present, four
// derived timestamp keys are added for the day it names; the explicit
// properties are overlaid last so a user-supplied value always wins.
// A malformed document yields an empty map, not an error; parameter binding
// must never be the reason a task cannot report its own failure.
func BuildGlobalParamsMap(globalParamsJSON string) map[string]string {
	out := make(map[string]string, 16)
	if globalParamsJSON == "" {
		return out
	}

	var props []types.Property
	if err := json.Unmarshal([]byte(globalParamsJSON), &props); err != nil {
		logger := log.WithComponent("parameter-binder")
		logger.Warn().Err(err).
			Msg("failed to parse global params, ignoring")
		return out
	}

	for _, p := range props {
		if p.Prop == SyncDateKey {
			addDerivedTimestamps(out, p.Value)
			break
		}
	}

	for _, p := range props {
		out[p.Prop] = p.Value
	}
	return out
}

// addDerivedTimestamps fills the four timestamp keys for the given
// yyyy-MM-dd value. An unparseable value yields empty strings, never an
// error; the workflow still runs and the script decides what to do.
func addDerivedTimestamps(out map[string]string, syncDate string) {
	start, err := parseDayStart(syncDate)
	if err != nil {
		logger := log.WithComponent("parameter-binder")
		logger.Warn().
			Str("sync_date", syncDate).
			Msg("unparseable syncDate, derived timestamps left empty")
		out[StartTimeStampKey] = ""
		out[EndTimeStampKey] = ""
		out[StartTimeStampS] = ""
		out[EndTimeStampS] = ""
		return
	}

	end := start + endOfDayOffsetMillis
	out[StartTimeStampKey] = strconv.FormatInt(start, 10)
	out[EndTimeStampKey] = strconv.FormatInt(end, 10)
	out[StartTimeStampS] = strconv.FormatInt(start/1000, 10)
	out[EndTimeStampS] = strconv.FormatInt(end/1000, 10)
}

// parseDayStart parses a yyyy-MM-dd date in the local zone and returns the
// millisecond timestamp of that day's midnight.
func parseDayStart(value string) (int64, error) {
	t, err := time.ParseInLocation(syncDateLayout, value, time.Local)
	if err != nil {
		return 0, err
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
	return midnight.UnixMilli(), nil
}

// PreBuildBusinessParams derives the schedule-time parameters. Tasks run by
// a history rerun or batch complement carry a schedule time; everything
// else gets an empty map.
func PreBuildBusinessParams(scheduleTime *time.Time) map[string]types.Property {
	out := make(map[string]types.Property)
	if scheduleTime != nil {
		out[DateTimeKey] = types.Property{
			Prop:  DateTimeKey,
			Value: scheduleTime.Format(dateTimeLayout),
		}
	}
	return out
}

// MergeProperties overlays updates onto base, last write winning on
// duplicate Prop names, and returns the merged list in stable order.
func MergeProperties(base, updates []types.Property) []types.Property {
	index := make(map[string]int, len(base))
	out := make([]types.Property, 0, len(base)+len(updates))
	for _, p := range base {
		if i, ok := index[p.Prop]; ok {
			out[i] = p
			continue
		}
		index[p.Prop] = len(out)
		out = append(out, p)
	}
	for _, p := range updates {
		if i, ok := index[p.Prop]; ok {
			out[i] = p
			continue
		}
		index[p.Prop] = len(out)
		out = append(out, p)
	}
	return out
}
