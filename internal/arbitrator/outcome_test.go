package arbitrator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

type resolvedMarket struct {
	domain.Market
	invalid bool
	payout  [2]uint64
}

func (m resolvedMarket) IsInvalid() bool { return m.invalid }

func (m resolvedMarket) GetWinningPayoutNumerator(i int) *uint256.Int {
	return uint256.NewInt(m.payout[i])
}

func TestAnswerFromMarket(t *testing.T) {
	cases := []struct {
		name   string
		market resolvedMarket
		want   []byte
	}{
		{"yes", resolvedMarket{payout: [2]uint64{0, numTicks}}, append(make([]byte, 31), 0x01)},
		{"no", resolvedMarket{payout: [2]uint64{numTicks, 0}}, make([]byte, 32)},
		{"invalid flag", resolvedMarket{invalid: true, payout: [2]uint64{0, numTicks}}, allOnes()},
		{"tie", resolvedMarket{payout: [2]uint64{numTicks / 2, numTicks / 2}}, allOnes()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnswerFromMarket(tc.market)
			assert.Equal(t, tc.want, got.Bytes())
		})
	}
}

func allOnes() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0xff
	}
	return b
}
