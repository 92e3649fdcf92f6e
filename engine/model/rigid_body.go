package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// RigidBodyMode decides which side owns a body's transform.
type RigidBodyMode int

const (
	// RigidBodyFollowBone bodies are kinematic and track their bone.
	RigidBodyFollowBone RigidBodyMode = iota
	// RigidBodyDynamic bodies drive their bone's rotation and translation.
	RigidBodyDynamic
	// RigidBodyDynamicWithBonePosition bodies drive rotation only; the bone keeps its position.
	RigidBodyDynamicWithBonePosition
)

// FollowBoneType selects when a kinematic body is pushed relative to the simulation step.
type FollowBoneType int

const (
	FollowBeforeSimulation FollowBoneType = iota
	FollowAfterSimulation
)

// RigidBody binds a physics body to a bone.
type RigidBody struct {
	Name      string
	BoneIndex int32
	Mode      RigidBodyMode
	Follow    FollowBoneType

	// Offset is the body frame relative to the bone's skinning frame.
	Offset mgl32.Mat4
}
