package tclass

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"netcop-updater/internal/models"
)

// memRepo is an in-memory Repository that counts membership writes
type memRepo struct {
	classes map[int]models.TrafficClass
	subnets map[int]map[models.Group]map[models.Subnet]bool
	ports   map[int]map[models.Group]map[models.Port]bool

	adds, removes int
	failUpdate    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		classes: map[int]models.TrafficClass{},
		subnets: map[int]map[models.Group]map[models.Subnet]bool{},
		ports:   map[int]map[models.Group]map[models.Port]bool{},
	}
}

func (r *memRepo) FindClass(_ context.Context, id int) (*models.TrafficClass, error) {
	c, ok := r.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memRepo) CreateClass(_ context.Context, c *models.TrafficClass) error {
	if _, ok := r.classes[c.ID]; ok {
		return errors.New("duplicate class")
	}
	r.classes[c.ID] = *c
	return nil
}

func (r *memRepo) UpdateClass(_ context.Context, c *models.TrafficClass) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	stored := r.classes[c.ID]
	stored.Name, stored.Description, stored.Active = c.Name, c.Description, c.Active
	r.classes[c.ID] = stored
	return nil
}

func (r *memRepo) subnetSet(id int, g models.Group) map[models.Subnet]bool {
	if r.subnets[id] == nil {
		r.subnets[id] = map[models.Group]map[models.Subnet]bool{}
	}
	if r.subnets[id][g] == nil {
		r.subnets[id][g] = map[models.Subnet]bool{}
	}
	return r.subnets[id][g]
}

func (r *memRepo) portSet(id int, g models.Group) map[models.Port]bool {
	if r.ports[id] == nil {
		r.ports[id] = map[models.Group]map[models.Port]bool{}
	}
	if r.ports[id][g] == nil {
		r.ports[id][g] = map[models.Port]bool{}
	}
	return r.ports[id][g]
}

func (r *memRepo) ListSubnets(_ context.Context, id int, g models.Group) ([]models.Subnet, error) {
	var out []models.Subnet
	for s := range r.subnetSet(id, g) {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (r *memRepo) AddSubnet(_ context.Context, id int, g models.Group, s models.Subnet) error {
	set := r.subnetSet(id, g)
	if set[s] {
		return errors.New("duplicate subnet")
	}
	set[s] = true
	r.adds++
	return nil
}

func (r *memRepo) RemoveSubnet(_ context.Context, id int, g models.Group, s models.Subnet) error {
	delete(r.subnetSet(id, g), s)
	r.removes++
	return nil
}

func (r *memRepo) ListPorts(_ context.Context, id int, g models.Group) ([]models.Port, error) {
	var out []models.Port
	for p := range r.portSet(id, g) {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (r *memRepo) AddPort(_ context.Context, id int, g models.Group, p models.Port) error {
	set := r.portSet(id, g)
	if set[p] {
		return errors.New("duplicate port")
	}
	set[p] = true
	r.adds++
	return nil
}

func (r *memRepo) RemovePort(_ context.Context, id int, g models.Group, p models.Port) error {
	delete(r.portSet(id, g), p)
	r.removes++
	return nil
}

func intPtr(v int) *int { return &v }

func sn(addr string, prefix int) models.Subnet {
	return models.Subnet{Address: addr, Prefix: prefix}
}

func pt(number, proto int) models.Port {
	return models.Port{Number: number, Protocol: proto}
}

func scenarioCatalog() []models.ClassUpdate {
	return []models.ClassUpdate{{
		ID:             intPtr(1),
		Name:           "web",
		SubnetsOutside: []string{"1.1.1.1/32", "2.2.2.0/24"},
		PortsOutside:   []string{"80/tcp", "443/tcp"},
		SubnetsInside:  []string{"3.3.3.3/32"},
		PortsInside:    []string{"1024/udp"},
	}}
}

func TestDiff(t *testing.T) {
	add, remove := Diff([]string{"A", "B", "C"}, []string{"B", "C", "D"})
	assert.Equal(t, []string{"D"}, add)
	assert.Equal(t, []string{"A"}, remove)

	add, remove = Diff([]string{"A", "B"}, nil)
	assert.Empty(t, add)
	assert.Equal(t, []string{"A", "B"}, remove)

	add, remove = Diff(nil, []string{"A", "A", "B"})
	assert.Equal(t, []string{"A", "B"}, add)
	assert.Empty(t, remove)

	add, remove = Diff([]string{"A"}, []string{"A"})
	assert.Empty(t, add)
	assert.Empty(t, remove)
}

func TestApplyCreatesClassInEmptyStorage(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())

	changed, err := svc.Apply(context.Background(), repo, scenarioCatalog())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	class := repo.classes[1]
	assert.Equal(t, models.KindSystem, class.Kind)
	assert.Equal(t, "web", class.Name)
	assert.Equal(t, "", class.Description)
	assert.True(t, class.Active)

	ctx := context.Background()
	outside, _ := repo.ListSubnets(ctx, 1, models.GroupOutside)
	assert.ElementsMatch(t, []models.Subnet{sn("1.1.1.1", 32), sn("2.2.2.0", 24)}, outside)
	inside, _ := repo.ListSubnets(ctx, 1, models.GroupInside)
	assert.ElementsMatch(t, []models.Subnet{sn("3.3.3.3", 32)}, inside)
	outPorts, _ := repo.ListPorts(ctx, 1, models.GroupOutside)
	assert.ElementsMatch(t, []models.Port{pt(80, 6), pt(443, 6)}, outPorts)
	inPorts, _ := repo.ListPorts(ctx, 1, models.GroupInside)
	assert.ElementsMatch(t, []models.Port{pt(1024, 17)}, inPorts)
	assert.Equal(t, 6, repo.adds)
	assert.Zero(t, repo.removes)
}

func TestApplyIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())
	ctx := context.Background()

	_, err := svc.Apply(ctx, repo, scenarioCatalog())
	require.NoError(t, err)
	adds, removes := repo.adds, repo.removes

	changed, err := svc.Apply(ctx, repo, scenarioCatalog())
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, adds, repo.adds)
	assert.Equal(t, removes, repo.removes)
}

func TestApplyComputesMinimalDifference(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())
	ctx := context.Background()

	repo.classes[5] = models.TrafficClass{ID: 5, Name: "old", Active: true}
	for _, v := range []string{"10.0.0.1/32", "10.0.0.2/32", "10.0.0.3/32"} {
		s, _ := models.ParseSubnet(v)
		repo.subnetSet(5, models.GroupOutside)[s] = true
		repo.subnetSet(5, models.GroupInside)[s] = true
	}
	for _, v := range []string{"1/tcp", "2/tcp", "3/tcp"} {
		p, _ := models.ParsePort(v)
		repo.portSet(5, models.GroupOutside)[p] = true
		repo.portSet(5, models.GroupInside)[p] = true
	}

	update := models.ClassUpdate{
		ID:             intPtr(5),
		Name:           "old",
		SubnetsOutside: []string{"10.0.0.2/32", "10.0.0.3/32", "10.0.0.4/32"},
		SubnetsInside:  []string{"10.0.0.2/32", "10.0.0.3/32", "10.0.0.4/32"},
		PortsOutside:   []string{"2/tcp", "3/tcp", "4/tcp"},
		PortsInside:    []string{"2/tcp", "3/tcp", "4/tcp"},
	}
	ok, err := svc.ApplyClass(ctx, repo, &update)
	require.NoError(t, err)
	assert.True(t, ok)

	// one add and one remove per collection
	assert.Equal(t, 4, repo.adds)
	assert.Equal(t, 4, repo.removes)

	inside, _ := repo.ListSubnets(ctx, 5, models.GroupInside)
	assert.ElementsMatch(t, []models.Subnet{sn("10.0.0.2", 32), sn("10.0.0.3", 32), sn("10.0.0.4", 32)}, inside)
	outPorts, _ := repo.ListPorts(ctx, 5, models.GroupOutside)
	assert.ElementsMatch(t, []models.Port{pt(2, 6), pt(3, 6), pt(4, 6)}, outPorts)
}

func TestApplyMovesMisplacedPort(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())
	ctx := context.Background()

	repo.classes[7] = models.TrafficClass{ID: 7, Name: "games", Active: true}
	out := repo.portSet(7, models.GroupOutside)
	out[models.Port{Number: 443, Protocol: 6}] = true
	out[models.Port{Number: 80, Protocol: 6}] = true
	out[models.Port{Number: 1024, Protocol: 17}] = true

	update := models.ClassUpdate{ID: intPtr(7), Name: "games", PortsInside: []string{"1024/udp"}}
	changed, err := svc.Apply(ctx, repo, []models.ClassUpdate{update})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	outPorts, _ := repo.ListPorts(ctx, 7, models.GroupOutside)
	assert.Empty(t, outPorts)
	inPorts, _ := repo.ListPorts(ctx, 7, models.GroupInside)
	assert.Equal(t, []models.Port{pt(1024, 17)}, inPorts)
	assert.Equal(t, 3, repo.removes)
	assert.Equal(t, 1, repo.adds)
}

func TestApplyOverwritesScalars(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())
	ctx := context.Background()

	repo.classes[3] = models.TrafficClass{ID: 3, Name: "dns", Description: "resolvers", Active: false}

	changed, err := svc.Apply(ctx, repo, []models.ClassUpdate{{ID: intPtr(3), Name: "dns"}})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	class := repo.classes[3]
	assert.Equal(t, "", class.Description)
	assert.True(t, class.Active)
}

func TestApplySkipsUserClasses(t *testing.T) {
	repo := newMemRepo()
	svc := New(zap.NewNop())
	ctx := context.Background()

	repo.classes[1] = models.TrafficClass{ID: 1, Name: "mine", Description: "local", Kind: models.KindUser, Active: false}
	repo.subnetSet(1, models.GroupOutside)[models.Subnet{Address: "9.9.9.9", Prefix: 32}] = true
	repo.portSet(1, models.GroupInside)[models.Port{Number: 22, Protocol: 6}] = true
	repo.failUpdate = errors.New("user classes must not be written")

	changed, err := svc.Apply(ctx, repo, scenarioCatalog())
	require.NoError(t, err)
	assert.Zero(t, changed)

	assert.Equal(t, models.TrafficClass{ID: 1, Name: "mine", Description: "local", Kind: models.KindUser}, repo.classes[1])
	outside, _ := repo.ListSubnets(ctx, 1, models.GroupOutside)
	assert.Equal(t, []models.Subnet{sn("9.9.9.9", 32)}, outside)
	inPorts, _ := repo.ListPorts(ctx, 1, models.GroupInside)
	assert.Equal(t, []models.Port{pt(22, 6)}, inPorts)
	assert.Zero(t, repo.adds)
	assert.Zero(t, repo.removes)
}

func TestApplyErrors(t *testing.T) {
	ctx := context.Background()
	svc := New(zap.NewNop())

	t.Run("missing id", func(t *testing.T) {
		_, err := svc.Apply(ctx, newMemRepo(), []models.ClassUpdate{{Name: "x"}})
		require.ErrorIs(t, err, models.ErrMissingID)
	})

	t.Run("malformed subnet aborts before writing", func(t *testing.T) {
		repo := newMemRepo()
		_, err := svc.Apply(ctx, repo, []models.ClassUpdate{{ID: intPtr(2), SubnetsInside: []string{"1.2.3.4"}}})
		require.ErrorIs(t, err, models.ErrInvalidEntry)
		assert.Empty(t, repo.classes)
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		repo := newMemRepo()
		repo.classes[4] = models.TrafficClass{ID: 4}
		boom := errors.New("disk full")
		repo.failUpdate = boom

		changed, err := svc.Apply(ctx, repo, []models.ClassUpdate{{ID: intPtr(9)}, {ID: intPtr(4)}})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, changed)
	})
}
