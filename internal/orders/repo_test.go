package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/easonhq/eason/internal/catalog"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/postgres"
	"github.com/easonhq/eason/internal/users"
)

type orderRepoSuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool

	repo     *orders.Repo
	catalog  *catalog.Repo
	usersTbl *users.Repo

	buyer users.User
}

func TestOrderRepoSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(orderRepoSuite))
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgC, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("eason"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}
	connStr, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}
	return pgC, connStr, nil
}

func (s *orderRepoSuite) SetupSuite() {
	ctx := context.Background()

	var (
		connStr string
		err     error
	)
	s.container, connStr, err = startPostgres(ctx)
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)

	s.Require().NoError(postgres.Migrate(ctx, s.pool))

	s.repo = &orders.Repo{DB: s.pool}
	s.catalog = &catalog.Repo{DB: s.pool}
	s.usersTbl = &users.Repo{DB: s.pool}

	s.buyer, err = s.usersTbl.Create(ctx, users.User{
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		Email:        gofakeit.Email(),
		PasswordHash: "x",
		Role:         users.RoleRetailer,
		Verified:     true,
	})
	s.Require().NoError(err)
}

func (s *orderRepoSuite) TearDownSuite() {
	ctx := context.Background()
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(ctx))
	}
}

func (s *orderRepoSuite) TearDownTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE TABLE order_items, orders CASCADE`)
	s.NoError(err)
	_, err = s.pool.Exec(context.Background(), `TRUNCATE TABLE products CASCADE`)
	s.NoError(err)
}

func (s *orderRepoSuite) seedProduct(stock int, priceCents int64) catalog.Product {
	p, err := s.catalog.CreateProduct(context.Background(), catalog.Product{
		Name:                 gofakeit.ProductName(),
		BaseCostCents:        priceCents / 2,
		WholesalerPriceCents: priceCents,
		Stock:                stock,
	})
	s.Require().NoError(err)
	return p
}

func (s *orderRepoSuite) newOrder(items ...orders.OrderItem) *orders.Order {
	var total int64
	for _, it := range items {
		total += it.PriceCents * int64(it.Qty)
	}
	now := time.Now().UTC()
	return &orders.Order{
		ID:              uuid.New(),
		UserID:          s.buyer.ID,
		Items:           items,
		TotalCents:      total,
		Status:          orders.StatusPending,
		PaymentStatus:   orders.PaymentPending,
		ShippingAddress: gofakeit.Street(),
		Phone:           gofakeit.Phone(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *orderRepoSuite) productStock(id uuid.UUID) int {
	var stock int
	err := s.pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, id).Scan(&stock)
	s.Require().NoError(err)
	return stock
}

func (s *orderRepoSuite) TestCreateReserving() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(10, 250)
	o := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 4, PriceCents: 250})

	require.NoError(t, s.repo.CreateReserving(ctx, o))
	require.Equal(t, 6, s.productStock(p.ID))

	got, err := s.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.UserID, got.UserID)
	require.Equal(t, orders.StatusPending, got.Status)
	require.Equal(t, int64(1000), got.TotalCents)
	require.Len(t, got.Items, 1)
	require.Equal(t, 4, got.Items[0].Qty)
	require.Equal(t, p.Name, got.Items[0].ProductName)
}

func (s *orderRepoSuite) TestCreateReservingShortageRollsBack() {
	ctx := context.Background()
	t := s.T()

	p1 := s.seedProduct(10, 100)
	p2 := s.seedProduct(2, 100)
	o := s.newOrder(
		orders.OrderItem{ProductID: p1.ID, Qty: 3, PriceCents: 100},
		orders.OrderItem{ProductID: p2.ID, Qty: 5, PriceCents: 100},
	)

	err := s.repo.CreateReserving(ctx, o)
	var ins *orders.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	require.Equal(t, p2.ID, ins.ProductID)
	require.Equal(t, 2, ins.Available)
	require.Equal(t, 5, ins.Requested)

	require.Equal(t, 10, s.productStock(p1.ID))
	require.Equal(t, 2, s.productStock(p2.ID))

	_, err = s.repo.GetByID(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func (s *orderRepoSuite) TestCreateReservingUnknownProduct() {
	ctx := context.Background()
	t := s.T()

	o := s.newOrder(orders.OrderItem{ProductID: uuid.New(), Qty: 1, PriceCents: 100})

	err := s.repo.CreateReserving(ctx, o)
	var pnf *orders.ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
}

// Serialization check: two transactions racing for the same stock must
// leave exactly one committed and stock never negative.
func (s *orderRepoSuite) TestCreateReservingConcurrent() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(10, 100)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		o := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 6, PriceCents: 100})
		go func() { errs <- s.repo.CreateReserving(ctx, o) }()
	}

	var okCount, shortCount int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			okCount++
			continue
		}
		var ins *orders.InsufficientStockError
		require.ErrorAs(t, err, &ins)
		shortCount++
	}

	require.Equal(t, 1, okCount)
	require.Equal(t, 1, shortCount)
	require.Equal(t, 4, s.productStock(p.ID))
}

// Orders are never deleted, so deleting a product must not be blocked
// by existing order lines, and those lines must still load afterwards.
func (s *orderRepoSuite) TestProductDeletionKeepsOrderHistory() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(5, 100)
	o := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 2, PriceCents: 100})
	require.NoError(t, s.repo.CreateReserving(ctx, o))

	require.NoError(t, s.catalog.DeleteProduct(ctx, p.ID))

	got, err := s.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, p.ID, got.Items[0].ProductID)
	require.Equal(t, int64(100), got.Items[0].PriceCents)
	require.Empty(t, got.Items[0].ProductName)
	require.Equal(t, int64(200), got.TotalCents)
}

func (s *orderRepoSuite) TestItemsKeepSubmissionOrder() {
	ctx := context.Background()
	t := s.T()

	p1 := s.seedProduct(10, 100)
	p2 := s.seedProduct(10, 200)
	o := s.newOrder(
		orders.OrderItem{ProductID: p2.ID, Qty: 1, PriceCents: 200},
		orders.OrderItem{ProductID: p1.ID, Qty: 2, PriceCents: 100},
		orders.OrderItem{ProductID: p2.ID, Qty: 3, PriceCents: 200},
	)
	require.NoError(t, s.repo.CreateReserving(ctx, o))

	got, err := s.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	require.Equal(t, p2.ID, got.Items[0].ProductID)
	require.Equal(t, p1.ID, got.Items[1].ProductID)
	require.Equal(t, p2.ID, got.Items[2].ProductID)
	require.Equal(t, 3, got.Items[2].Qty)
	require.Equal(t, 4, s.productStock(p2.ID))
}

func (s *orderRepoSuite) TestUpdateStatus() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(5, 100)
	o := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 1, PriceCents: 100})
	require.NoError(t, s.repo.CreateReserving(ctx, o))

	from, err := s.repo.UpdateStatus(ctx, o.ID, orders.StatusProcessing)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPending, from)

	got, err := s.repo.GetStatus(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusProcessing, got)

	// Skipping straight to delivered is rejected and nothing changes.
	_, err = s.repo.UpdateStatus(ctx, o.ID, orders.StatusDelivered)
	var bad *orders.InvalidTransitionError
	require.ErrorAs(t, err, &bad)
	require.Equal(t, orders.StatusProcessing, bad.From)

	got, err = s.repo.GetStatus(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusProcessing, got)

	_, err = s.repo.UpdateStatus(ctx, uuid.New(), orders.StatusProcessing)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func (s *orderRepoSuite) TestListByUser() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(20, 100)

	first := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 1, PriceCents: 100})
	require.NoError(t, s.repo.CreateReserving(ctx, first))

	second := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 2, PriceCents: 100})
	second.CreatedAt = second.CreatedAt.Add(time.Second)
	require.NoError(t, s.repo.CreateReserving(ctx, second))

	// Another account's order must not leak into the listing.
	other, err := s.usersTbl.Create(ctx, users.User{
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		Email:        gofakeit.Email(),
		PasswordHash: "x",
		Role:         users.RoleRetailer,
		Verified:     true,
	})
	require.NoError(t, err)
	foreign := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 1, PriceCents: 100})
	foreign.UserID = other.ID
	require.NoError(t, s.repo.CreateReserving(ctx, foreign))

	got, err := s.repo.ListByUser(ctx, s.buyer.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, first.ID, got[1].ID)
	require.Len(t, got[0].Items, 1)
	require.Equal(t, p.Name, got[0].Items[0].ProductName)
}

func (s *orderRepoSuite) TestListAllExpandsBuyer() {
	ctx := context.Background()
	t := s.T()

	p := s.seedProduct(5, 100)
	o := s.newOrder(orders.OrderItem{ProductID: p.ID, Qty: 1, PriceCents: 100})
	require.NoError(t, s.repo.CreateReserving(ctx, o))

	got, err := s.repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, s.buyer.FullName(), got[0].BuyerName)
	require.Equal(t, s.buyer.Email, got[0].BuyerEmail)
}
