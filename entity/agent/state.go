package agent

// State 上一步决策所走的分支
type State int

const (
	StateIdle         State = iota // 尚未决策
	StateCruise                    // 正常行驶
	StateJunctionTurn              // 路口转弯减速
	StateCarFollowing              // 跟车
	StateRedLight                  // 红灯停车
	StateWalkerStop                // 行人避让停车
	StateVehicleStop               // 前车过近停车
	StateArrived                   // 路径已走完
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateCruise:       "cruise",
	StateJunctionTurn: "junction_turn",
	StateCarFollowing: "car_following",
	StateRedLight:     "red_light",
	StateWalkerStop:   "walker_stop",
	StateVehicleStop:  "vehicle_stop",
	StateArrived:      "arrived",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsStop 是否为紧急停车分支
func (s State) IsStop() bool {
	return s == StateRedLight || s == StateWalkerStop || s == StateVehicleStop
}
