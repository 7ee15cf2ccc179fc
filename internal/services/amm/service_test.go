package amm

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

type poolAPIMock struct {
	mock.Mock
}

func (m *poolAPIMock) AMMInfo(ctx context.Context, asset1, asset2 domain.Currency) (*domain.RawPool, error) {
	ret := m.Called(ctx, asset1, asset2)
	var r0 *domain.RawPool
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.RawPool)
	}
	return r0, ret.Error(1)
}

type journalMock struct {
	mock.Mock
}

func (m *journalMock) Save(obs domain.PoolObservation) (bool, error) {
	ret := m.Called(obs)
	return ret.Bool(0), ret.Error(1)
}

func TestServicePoolOrientsAndJournals(t *testing.T) {
	pair := domain.Pair{Base: domain.NewCurrency("SOLO", gateway), Quote: domain.XRP()}
	raw := rawPool(domain.NewXRPAmount("2000000000"), domain.NewIssuedAmount(solo, gateway, "1000"), false, false)

	api := &poolAPIMock{}
	api.On("AMMInfo", mock.Anything, pair.Base, pair.Quote).Return(raw, nil)
	journal := &journalMock{}
	journal.On("Save", mock.MatchedBy(func(obs domain.PoolObservation) bool {
		return obs.Pair == pair.String() && obs.Snapshot.SpotPrice == "2"
	})).Return(true, nil).Once()

	s := NewService(zap.NewNop(), api, journal)
	snapshot, err := s.Pool(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, "SOLO", snapshot.Base.Code)
	assert.Equal(t, "2", snapshot.SpotPrice)

	api.AssertExpectations(t)
	journal.AssertExpectations(t)
}

func TestServicePoolMissingNotJournaled(t *testing.T) {
	pair := domain.Pair{Base: domain.XRP(), Quote: domain.NewCurrency("USD", gateway)}

	api := &poolAPIMock{}
	api.On("AMMInfo", mock.Anything, pair.Base, pair.Quote).Return(&domain.RawPool{Exists: false}, nil)
	journal := &journalMock{}

	snapshot, err := NewService(zap.NewNop(), api, journal).Pool(context.Background(), pair)
	require.NoError(t, err)
	assert.False(t, snapshot.Exists)
	journal.AssertNotCalled(t, "Save", mock.Anything)
}

func TestServicePoolQueryError(t *testing.T) {
	pair := domain.Pair{Base: domain.XRP(), Quote: domain.NewCurrency("USD", gateway)}

	api := &poolAPIMock{}
	api.On("AMMInfo", mock.Anything, pair.Base, pair.Quote).Return(nil, errors.New("connection refused"))

	_, err := NewService(zap.NewNop(), api, nil).Pool(context.Background(), pair)
	assert.Error(t, err)
}
