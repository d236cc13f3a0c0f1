package input

// Road 直道，车道编号从左到右为1..LaneCount，同向行驶
type Road struct {
	ID         int32   `yaml:"id" bson:"id"`
	Length     float64 `yaml:"length" bson:"length"`           // 道路长度（米）
	LaneCount  int     `yaml:"lane_count" bson:"lane_count"`   // 车道数
	LaneWidth  float64 `yaml:"lane_width" bson:"lane_width"`   // 车道宽度（米）
	SpeedLimit float64 `yaml:"speed_limit" bson:"speed_limit"` // 默认限速（km/h）
}

// SpeedZone 限速区段，覆盖[From, To)内的默认限速
type SpeedZone struct {
	From  float64 `yaml:"from" bson:"from"`
	To    float64 `yaml:"to" bson:"to"`
	Limit float64 `yaml:"limit" bson:"limit"` // km/h
}

// TrafficLight 固定配时信号灯，停车线位于S处，其后JunctionLength米为路口
type TrafficLight struct {
	S              float64 `yaml:"s" bson:"s"`
	JunctionLength float64 `yaml:"junction_length" bson:"junction_length"`
	Green          float64 `yaml:"green" bson:"green"`                       // 绿灯时长（秒）
	Yellow         float64 `yaml:"yellow" bson:"yellow"`                     // 黄灯时长（秒）
	Red            float64 `yaml:"red" bson:"red"`                           // 红灯时长（秒）
	Offset         float64 `yaml:"offset,omitempty" bson:"offset,omitempty"` // 相位偏移（秒）
}

// Walker 横穿道路的行人，从道路左侧出发，到达右侧后折返
type Walker struct {
	S     float64 `yaml:"s" bson:"s"`
	Speed float64 `yaml:"speed" bson:"speed"`                     // 横向速度（米/秒）
	Delay float64 `yaml:"delay,omitempty" bson:"delay,omitempty"` // 出发前等待时间（秒）
}

// SpawnPoint 出生点
type SpawnPoint struct {
	Lane int32   `yaml:"lane" bson:"lane"`
	S    float64 `yaml:"s" bson:"s"`
}

// Scenario 场景：道路、限速区段、信号灯、行人与出生点
type Scenario struct {
	Name          string         `yaml:"name" bson:"name"`
	Road          Road           `yaml:"road" bson:"road"`
	SpeedZones    []SpeedZone    `yaml:"speed_zones,omitempty" bson:"speed_zones,omitempty"`
	TrafficLights []TrafficLight `yaml:"traffic_lights,omitempty" bson:"traffic_lights,omitempty"`
	Walkers       []Walker       `yaml:"walkers,omitempty" bson:"walkers,omitempty"`
	SpawnPoints   []SpawnPoint   `yaml:"spawn_points" bson:"spawn_points"`
}
