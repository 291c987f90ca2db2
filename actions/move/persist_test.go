package move

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/16tons/emergency5-sdk-sub029/actions"
	"github.com/16tons/emergency5-sdk-sub029/navigation/goal"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
)

func TestSerializeRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.deps.WaitBoard = NewWaitBoard()
	test.That(t, f.store.Add(targetID, "squad", spatialmath.NewPose(r3.Vector{X: 20}, 0)), test.ShouldBeNil)

	a := f.newAction(t, agentID)
	g := goal.NewFollowEntity(targetID, 2)
	test.That(t, a.Init(&g, walkMode, nil, time.Minute), test.ShouldBeNil)
	test.That(t, a.ForceFollowedEntityToWait(3, time.Second), test.ShouldBeNil)
	test.That(t, a.OnStartup(context.Background()), test.ShouldBeNil)
	// Far enough to cut consumed path away at least once.
	for i := 0; i < 40; i++ {
		test.That(t, f.step(a), test.ShouldEqual, actions.Running)
	}
	snapshot := a.Snapshot()
	test.That(t, snapshot.Consumed, test.ShouldBeGreaterThan, 0)

	var serializer BSONSerializer
	data, err := a.Serialize(serializer)
	test.That(t, err, test.ShouldBeNil)

	restored := f.newAction(t, agentID)
	test.That(t, restored.Restore(serializer, data), test.ShouldBeNil)
	test.That(t, cmp.Diff(snapshot, restored.Snapshot()), test.ShouldBeEmpty)
	test.That(t, restored.State(), test.ShouldEqual, Moving)
	test.That(t, restored.PathLength(), test.ShouldAlmostEqual, a.PathLength())
	test.That(t, restored.Traveled(), test.ShouldAlmostEqual, a.Traveled())
	test.That(t, restored.FollowedEntity(), test.ShouldEqual, targetID)
	test.That(t, restored.Mode().Name, test.ShouldEqual, "walk")

	// Both continue identically.
	f.now += tick
	clock := actions.Clock{Delta: tick, Now: f.now}
	before := f.agentPose(t, agentID)
	test.That(t, a.Update(context.Background(), clock), test.ShouldEqual, actions.Running)
	expected := f.agentPose(t, agentID)
	test.That(t, f.store.SetPose(agentID, before), test.ShouldBeNil)
	test.That(t, restored.Update(context.Background(), clock), test.ShouldEqual, actions.Running)
	test.That(t, spatialmath.PoseAlmostEqual(f.agentPose(t, agentID), expected), test.ShouldBeTrue)
	test.That(t, restored.Traveled(), test.ShouldAlmostEqual, a.Traveled())
}

func TestRestoreRejectsForeignState(t *testing.T) {
	f := newFixture(t, nil)
	a := f.newAction(t, agentID)
	g := goal.NewFixedPoint(r3.Vector{X: 10}, 0)
	test.That(t, a.Init(&g, walkMode, nil, 0), test.ShouldBeNil)

	state := a.Snapshot()
	state.Version = PersistentStateVersion + 1
	test.That(t, a.RestoreSnapshot(state), test.ShouldNotBeNil)

	state = a.Snapshot()
	state.Agent = targetID
	test.That(t, a.RestoreSnapshot(state), test.ShouldNotBeNil)

	var serializer BSONSerializer
	test.That(t, a.Restore(serializer, []byte("not bson")), test.ShouldNotBeNil)

	// A not yet started action round trips without a path or mode.
	data, err := a.Serialize(serializer)
	test.That(t, err, test.ShouldBeNil)
	fresh := f.newAction(t, agentID)
	test.That(t, fresh.Restore(serializer, data), test.ShouldBeNil)
	test.That(t, fresh.State(), test.ShouldEqual, Uninitialized)
	test.That(t, fresh.PathLength(), test.ShouldEqual, 0.0)
	test.That(t, fresh.OnStartup(context.Background()), test.ShouldBeNil)
	test.That(t, fresh.State(), test.ShouldEqual, Planning)
}
