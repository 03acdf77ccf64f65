// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
)

// FormatSize - render a byte count for log messages
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	suffix := "KMGTPE"
	i := -1
	for value >= unit || value <= -unit {
		value /= unit
		i += 1
		if i == len(suffix)-1 {
			break
		}
	}
	return fmt.Sprintf("%.1f %ciB", value, suffix[i])
}
