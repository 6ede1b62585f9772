package common

import (
	"fmt"
	"strconv"
	"strings"

	"himawari-desktop/internal/apperr"
)

// Margins are pixel insets added around the tile grid
type Margins struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

const marginsUsage = "Use format TOP[,RIGHT][,BOTTOM][,LEFT]"

// ParseMargins parses TOP[,RIGHT][,BOTTOM][,LEFT].
// RIGHT defaults to TOP, BOTTOM to TOP and LEFT to RIGHT when only two values
// are given or TOP when three are given. An empty string yields zero margins.
func ParseMargins(input string) (Margins, error) {
	if strings.TrimSpace(input) == "" {
		return Margins{}, nil
	}

	parts := strings.Split(input, ",")
	if len(parts) > 4 {
		return Margins{}, apperr.New(apperr.KindConfig, marginsUsage)
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Margins{}, apperr.New(apperr.KindConfig, marginsUsage)
		}
		values[i] = n
	}

	m := Margins{Top: values[0], Right: values[0], Bottom: values[0], Left: values[0]}
	switch len(values) {
	case 2:
		m.Right, m.Left = values[1], values[1]
	case 3:
		m.Right, m.Bottom = values[1], values[2]
	case 4:
		m.Right, m.Bottom, m.Left = values[1], values[2], values[3]
	}
	return m, nil
}

// IsZero reports whether no margin is set
func (m Margins) IsZero() bool {
	return m == Margins{}
}

// Validate rejects negative margins
func (m Margins) Validate() error {
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return apperr.New(apperr.KindConfig, "margins must not be negative")
	}
	return nil
}

// Horizontal returns left + right
func (m Margins) Horizontal() int {
	return m.Left + m.Right
}

// Vertical returns top + bottom
func (m Margins) Vertical() int {
	return m.Top + m.Bottom
}

// String returns the four-value form accepted by ParseMargins
func (m Margins) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", m.Top, m.Right, m.Bottom, m.Left)
}
