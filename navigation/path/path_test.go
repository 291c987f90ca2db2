package path

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNew(t *testing.T) {
	_, err := New()
	test.That(t, err, test.ShouldBeError, errors.New("a path needs at least one node"))

	_, err = New(Node{Position: r3.Vector{X: math.NaN()}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(Node{Radius: -1})
	test.That(t, err, test.ShouldNotBeNil)

	nodes := []Node{{Position: r3.Vector{}}, {Position: r3.Vector{X: 3, Y: 4}}}
	p, err := New(nodes...)
	test.That(t, err, test.ShouldBeNil)

	// The path owns its nodes.
	nodes[0].Position.X = 100
	test.That(t, p.Start(), test.ShouldResemble, r3.Vector{})
	copied := p.Nodes()
	copied[1].Radius = 5
	test.That(t, p.Node(1).Radius, test.ShouldEqual, 0.0)

	test.That(t, p.Len(), test.ShouldEqual, 2)
	test.That(t, p.End(), test.ShouldResemble, r3.Vector{X: 3, Y: 4})
	test.That(t, p.Length(), test.ShouldAlmostEqual, 5)
}

func TestRemaining(t *testing.T) {
	p, err := FromPositions(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{X: 2})
	test.That(t, err, test.ShouldBeNil)

	rest, err := p.Remaining(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rest.Len(), test.ShouldEqual, 2)
	test.That(t, rest.Start(), test.ShouldResemble, r3.Vector{X: 1})

	_, err = p.Remaining(-1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = p.Remaining(3)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSmoothed(t *testing.T) {
	p, err := New(
		Node{Position: r3.Vector{}},
		Node{Position: r3.Vector{X: 10}},
		Node{Position: r3.Vector{X: 10, Y: 10}, Radius: 1},
		Node{Position: r3.Vector{Y: 10}},
	)
	test.That(t, err, test.ShouldBeNil)

	smooth := p.Smoothed(3)
	test.That(t, smooth.Node(0).Radius, test.ShouldEqual, 0.0)
	test.That(t, smooth.Node(1).Radius, test.ShouldEqual, 3.0)
	test.That(t, smooth.Node(2).Radius, test.ShouldEqual, 1.0)
	test.That(t, smooth.Node(3).Radius, test.ShouldEqual, 0.0)
	test.That(t, p.Node(1).Radius, test.ShouldEqual, 0.0)
}

func TestFlags(t *testing.T) {
	test.That(t, FlagBackwards.Has(FlagBackwards), test.ShouldBeTrue)
	test.That(t, NodeFlags(0).Has(FlagBackwards), test.ShouldBeFalse)
}

func TestRouterFunc(t *testing.T) {
	var router Router = RouterFunc(func(ctx context.Context, req Request) (*Path, error) {
		return nil, NewNoPathError(req)
	})
	_, err := router.FindPath(context.Background(), Request{Goal: r3.Vector{X: 1}})
	test.That(t, errors.Is(err, ErrNoPath), test.ShouldBeTrue)
}
