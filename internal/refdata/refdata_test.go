package refdata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	failProducts error
	// blockOthers makes every list except products wait for cancellation
	blockOthers bool
}

func (s *stubSource) wait(ctx context.Context) error {
	if s.blockOthers {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *stubSource) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Customer{{ID: "C1", FullName: "Ada Shop"}}, nil
}

func (s *stubSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	if s.failProducts != nil {
		return nil, s.failProducts
	}
	return []models.Product{{ID: "P1", Name: "Crate"}, {ID: "P2", Name: "Tape"}}, nil
}

func (s *stubSource) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Warehouse{{ID: "W1", Name: "Main"}, {ID: "W2", Name: "Overflow"}}, nil
}

func (s *stubSource) ListLocations(ctx context.Context) ([]models.Location, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return []models.Location{
		{ID: "L1", WarehouseID: "W1", SectionName: "A-01"},
		{ID: "L2", WarehouseID: "W2", SectionName: "B-07"},
		{ID: "L3", WarehouseID: "W1", SectionName: "A-02"},
	}, nil
}

func TestLoad(t *testing.T) {
	snap, err := Load(context.Background(), &stubSource{})
	require.NoError(t, err)

	p, ok := snap.Product("P2")
	require.True(t, ok)
	require.Equal(t, "Tape", p.Name)

	_, ok = snap.Product("P9")
	require.False(t, ok)

	c, ok := snap.Customer("C1")
	require.True(t, ok)
	require.Equal(t, "Ada Shop", c.FullName)

	w, ok := snap.Warehouse("W2")
	require.True(t, ok)
	require.Equal(t, "Overflow", w.Name)

	l, ok := snap.Location("L3")
	require.True(t, ok)
	require.EqualValues(t, "W1", l.WarehouseID)

	require.Len(t, snap.Data().Locations, 3)
}

func TestLoad_FirstErrorCancelsTheRest(t *testing.T) {
	boom := errors.New("backend down")

	snap, err := Load(context.Background(), &stubSource{failProducts: boom, blockOthers: true})
	require.Nil(t, snap)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "products")
}

func TestSnapshot_IsolatedFromCallerSlices(t *testing.T) {
	data := Data{Products: []models.Product{{ID: "P1", Name: "Crate"}}}
	snap := NewSnapshot(data)

	data.Products[0].Name = "changed"
	out := snap.Data()
	out.Products[0].Name = "changed again"

	p, _ := snap.Product("P1")
	require.Equal(t, "Crate", p.Name)
	require.Equal(t, "Crate", snap.Data().Products[0].Name)
}
