package domain

import (
	"fmt"
	"strings"
	"time"
)

// sensingLayout is the timestamp layout in Sentinel-2 product names.
const sensingLayout = "20060102T150405"

// SensingTime parses the sensing start time from a Sentinel-2 product or
// archive name such as "S2A_MSIL2A_20200815T112121_N0214_R037_T29SNB_...zip".
func SensingTime(name string) (time.Time, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "S2") {
		return time.Time{}, fmt.Errorf("not a Sentinel-2 product name: %q", name)
	}
	t, err := time.Parse(sensingLayout, parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sensing time of %q: %w", name, err)
	}
	return t, nil
}

// SplitByFireDate divides archives into pre-fire (sensed on or before the
// fire day) and post-fire (sensed on or after it) sets, keeping input order.
// An archive sensed on the fire day belongs to both.
func SplitByFireDate(archives []ArchiveRef, fireDate time.Time) (pre, post []ArchiveRef, err error) {
	fireDay := civilDay(fireDate)
	for _, a := range archives {
		sensed, err := SensingTime(a.Name())
		if err != nil {
			return nil, nil, err
		}
		day := civilDay(sensed)
		if day <= fireDay {
			pre = append(pre, a)
		}
		if day >= fireDay {
			post = append(post, a)
		}
	}
	return pre, post, nil
}

// civilDay formats a time as YYYYMMDD so days compare lexically.
func civilDay(t time.Time) string {
	return t.Format("20060102")
}
