package enrichment

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tradesync/internal/enrichment/mocks"
	"tradesync/internal/registry"
	"tradesync/internal/trade/models"
	"tradesync/internal/trade/store"
	audit "tradesync/pkg/platform/audit"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	registry *mocks.MockRegistry
	store    *store.InMemory
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.store = store.NewInMemory()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSpacing(0),
	}, opts...)
	svc, err := New(s.store, s.registry, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) seedTrades(identifiers ...string) {
	records := make([]*models.TradeRecord, 0, len(identifiers))
	for i, id := range identifiers {
		r := &models.TradeRecord{
			Operation:       models.OperationImport,
			Identifier:      id,
			CommodityCode:   "8471300000",
			CountryCode:     "CN",
			DeclarationDate: time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
		}
		r.PartyKind, _ = models.PartyKindOf(id)
		r.Hash = r.ComputeHash()
		records = append(records, r)
	}
	s.Require().NoError(s.store.UpsertTradeRecords(s.ctx, records))
}

func legal(raw string) *registry.LegalInfo {
	var info registry.LegalInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		panic(err)
	}
	return &info
}

func individual(raw string) *registry.IndividualInfo {
	var info registry.IndividualInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		panic(err)
	}
	return &info
}

func (s *ServiceSuite) TestRun() {
	s.Run("creates missing legal organization", func() {
		s.SetupTest()
		s.seedTrades("123456789")
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").
			Return(legal(`{"company_name":"Acme LLC","company_short_name":"Acme","home_region":"Tashkent"}`), nil)
		events := &recordingEmitter{}

		res, err := s.newService(WithAuditEmitter(events)).Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, res.Candidates)
		s.Equal(1, res.Created)
		org, err := s.store.FindOrganization(s.ctx, "123456789")
		s.Require().NoError(err)
		s.Equal(models.PartyLegal, org.Kind)
		s.Equal("Acme LLC", models.Deref(org.Name))
		s.Equal("Tashkent", models.Deref(org.Region))
		s.Nil(org.District)
		s.Require().Len(events.events, 1)
		s.Equal(audit.EventOrganizationEnriched, events.events[0].Type)
		s.Equal("created", events.events[0].Reason)
	})

	s.Run("dispatches individuals by identifier length", func() {
		s.SetupTest()
		s.seedTrades("12345678901234")
		s.registry.EXPECT().LookupIndividual(gomock.Any(), "12345678901234").
			Return(individual(`{"firstname":"Ali","lastname":"Valiev","registration_address_region_soato":1726}`), nil)

		res, err := s.newService().Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, res.Created)
		org, err := s.store.FindOrganization(s.ctx, "12345678901234")
		s.Require().NoError(err)
		s.Equal(models.PartyIndividual, org.Kind)
		s.Equal("Valiev", models.Deref(org.LastName))
		s.Equal("1726", models.Deref(org.Region))
	})

	s.Run("failed lookup skips the identifier and continues", func() {
		s.SetupTest()
		s.seedTrades("111111111", "222222222", "333333333")
		gomock.InOrder(
			s.registry.EXPECT().LookupLegal(gomock.Any(), "111111111").
				Return(nil, &registry.Error{Category: registry.ErrorProviderOutage, Message: "status 502"}),
			s.registry.EXPECT().LookupLegal(gomock.Any(), "222222222").
				Return(nil, &registry.Error{Category: registry.ErrorNotFound, Message: "status 404"}),
			s.registry.EXPECT().LookupLegal(gomock.Any(), "333333333").
				Return(legal(`{"company_name":"Third"}`), nil),
		)

		res, err := s.newService().Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(3, res.Candidates)
		s.Equal(1, res.Failed)
		s.Equal(1, res.NotFound)
		s.Equal(1, res.Created)
		_, err = s.store.FindOrganization(s.ctx, "111111111")
		s.ErrorIs(err, store.ErrNotFound)
	})

	s.Run("rate limited lookup is counted and audited", func() {
		s.SetupTest()
		s.seedTrades("123456789")
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").
			Return(nil, &registry.Error{Category: registry.ErrorRateLimited, Message: "status 429"})
		events := &recordingEmitter{}

		res, err := s.newService(WithAuditEmitter(events)).Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, res.RateLimited)
		s.Require().Len(events.events, 1)
		s.Equal(audit.EventRegistryRateLimited, events.events[0].Type)
		s.Equal("123456789", events.events[0].Identifier)
	})

	s.Run("nothing to enrich makes no lookups", func() {
		s.SetupTest()
		res, err := s.newService().Run(s.ctx)
		s.Require().NoError(err)
		s.Zero(res.Candidates)
	})

	s.Run("registry entry without data is not persisted", func() {
		s.SetupTest()
		s.seedTrades("123456789")
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").Return(legal(`{}`), nil)

		res, err := s.newService().Run(s.ctx)
		s.Require().NoError(err)

		s.Equal(1, res.NotFound)
		s.Zero(res.Created)
		_, err = s.store.FindOrganization(s.ctx, "123456789")
		s.ErrorIs(err, store.ErrNotFound)
		missing, err := s.store.FindIdentifiersMissingOrganization(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"123456789"}, missing)
	})

	s.Run("malformed identifiers do not wait for a registry slot", func() {
		s.SetupTest()
		st := mocks.NewMockStore(s.ctrl)
		st.EXPECT().FindIdentifiersMissingOrganization(gomock.Any()).Return([]string{"12", "34", "56", "123456789"}, nil)
		st.EXPECT().FindOrganization(gomock.Any(), "123456789").Return(nil, store.ErrNotFound)
		st.EXPECT().UpsertOrganization(gomock.Any(), gomock.Any()).Return(nil)
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").Return(legal(`{"company_name":"A"}`), nil)
		svc, err := New(st, s.registry,
			WithSpacing(200*time.Millisecond),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		s.Require().NoError(err)

		start := time.Now()
		res, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Less(time.Since(start), 150*time.Millisecond)
		s.Equal(3, res.Skipped)
		s.Equal(1, res.Created)
	})

	s.Run("spacing separates consecutive lookups", func() {
		s.SetupTest()
		s.seedTrades("111111111", "222222222", "333333333")
		s.registry.EXPECT().LookupLegal(gomock.Any(), gomock.Any()).
			Return(legal(`{"company_name":"X"}`), nil).Times(3)

		start := time.Now()
		_, err := s.newService(WithSpacing(50 * time.Millisecond)).Run(s.ctx)
		s.Require().NoError(err)
		s.GreaterOrEqual(time.Since(start), 100*time.Millisecond)
	})
}

func (s *ServiceSuite) TestRefreshIncomplete() {
	s.Run("second run fills new fields and keeps stored ones", func() {
		s.SetupTest()
		s.seedTrades("123456789")
		gomock.InOrder(
			s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").
				Return(legal(`{"company_name":"Acme","home_region":"X"}`), nil),
			s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").
				Return(legal(`{"company_name":null,"home_region":"Y"}`), nil),
		)
		svc := s.newService(WithRefreshIncomplete(true))

		first, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, first.Created)

		second, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, second.Candidates)
		s.Equal(1, second.Updated)

		org, err := s.store.FindOrganization(s.ctx, "123456789")
		s.Require().NoError(err)
		s.Equal("Acme", models.Deref(org.Name))
		s.Equal("Y", models.Deref(org.Region))
	})

	s.Run("without refresh stored organizations are not revisited", func() {
		s.SetupTest()
		s.seedTrades("123456789")
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").
			Return(legal(`{"company_name":"Acme","home_region":"X"}`), nil)
		svc := s.newService()

		_, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		second, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Zero(second.Candidates)
	})

	s.Run("complete organizations are not revisited", func() {
		s.SetupTest()
		s.Require().NoError(s.store.UpsertOrganization(s.ctx, &models.Organization{
			Identifier: "123456789",
			Kind:       models.PartyLegal,
			Name:       models.StringPtr("Acme"),
			Region:     models.StringPtr("X"),
			District:   models.StringPtr("D"),
		}))

		res, err := s.newService(WithRefreshIncomplete(true)).Run(s.ctx)
		s.Require().NoError(err)
		s.Zero(res.Candidates)
	})

	s.Run("incomplete listing failure aborts the run", func() {
		s.SetupTest()
		st := mocks.NewMockStore(s.ctrl)
		st.EXPECT().FindIdentifiersMissingOrganization(gomock.Any()).Return(nil, nil)
		st.EXPECT().FindIncompleteOrganizations(gomock.Any()).Return(nil, errors.New("connection reset"))
		svc, err := New(st, s.registry, WithSpacing(0), WithRefreshIncomplete(true))
		s.Require().NoError(err)

		_, err = svc.Run(s.ctx)
		s.ErrorContains(err, "find incomplete organizations")
	})
}

func (s *ServiceSuite) TestMergeIntoExisting() {
	s.Run("non-nil fields overwrite and nil fields keep stored values", func() {
		s.SetupTest()
		svc := s.newService()
		s.Require().NoError(s.store.UpsertOrganization(s.ctx, &models.Organization{
			Identifier: "123456789",
			Kind:       models.PartyLegal,
			Name:       models.StringPtr("A"),
			Region:     models.StringPtr("X"),
		}))

		outcome, err := svc.merge(s.ctx, legal(`{"home_region":"Y"}`).ToOrganization("123456789"))
		s.Require().NoError(err)
		s.Equal("updated", outcome)

		org, err := s.store.FindOrganization(s.ctx, "123456789")
		s.Require().NoError(err)
		s.Equal("A", models.Deref(org.Name))
		s.Equal("Y", models.Deref(org.Region))
	})

	s.Run("identical data leaves the row unchanged", func() {
		s.SetupTest()
		svc := s.newService()
		s.Require().NoError(s.store.UpsertOrganization(s.ctx, &models.Organization{
			Identifier: "123456789",
			Kind:       models.PartyLegal,
			Name:       models.StringPtr("A"),
		}))

		outcome, err := svc.merge(s.ctx, legal(`{"company_name":"A"}`).ToOrganization("123456789"))
		s.Require().NoError(err)
		s.Equal("unchanged", outcome)
	})
}

func (s *ServiceSuite) TestStoreFailures() {
	s.Run("listing failure aborts the run", func() {
		s.SetupTest()
		st := mocks.NewMockStore(s.ctrl)
		st.EXPECT().FindIdentifiersMissingOrganization(gomock.Any()).Return(nil, errors.New("connection reset"))
		svc, err := New(st, s.registry, WithSpacing(0))
		s.Require().NoError(err)

		_, err = svc.Run(s.ctx)
		s.ErrorContains(err, "find identifiers missing organization")
	})

	s.Run("save failure counts as failed", func() {
		s.SetupTest()
		st := mocks.NewMockStore(s.ctrl)
		st.EXPECT().FindIdentifiersMissingOrganization(gomock.Any()).Return([]string{" 123456789 ", "123456789", "12"}, nil)
		st.EXPECT().FindOrganization(gomock.Any(), "123456789").Return(nil, store.ErrNotFound)
		st.EXPECT().UpsertOrganization(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
		s.registry.EXPECT().LookupLegal(gomock.Any(), "123456789").Return(legal(`{"company_name":"A"}`), nil)
		svc, err := New(st, s.registry, WithSpacing(0), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		s.Require().NoError(err)

		res, err := svc.Run(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, res.Candidates)
		s.Equal(1, res.Failed)
		s.Equal(1, res.Skipped)
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	if _, err := New(nil, mocks.NewMockRegistry(ctrl)); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(mocks.NewMockStore(ctrl), nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

type recordingEmitter struct {
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}
