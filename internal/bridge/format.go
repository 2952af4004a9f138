package bridge

import (
	"fmt"

	"github.com/zulandar/chatrelay/internal/messaging"
)

// formatText renders p as a single line. bold wraps the author name in the
// target platform's emphasis marker.
func formatText(p messaging.Payload, bold string) string {
	return fmt.Sprintf("%s%s%s in #%s (%s): %s", bold, p.UserName, bold, p.Channel, p.FormattedTime, p.Content)
}
