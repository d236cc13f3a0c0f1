package entity

import (
	"math"
)

// Speed 获取Actor的速度（km/h）
func Speed(a IActor) float64 {
	return 3.6 * a.Velocity().Length()
}

// IsWithinDistance 判断目标是否位于参考位姿前方的扇形区域内
// 功能：用于障碍物检测，目标与参考点距离不超过maxDistance，且与参考朝向的夹角位于[lowAngle, upAngle)内
// 参数：target-目标位姿，ref-参考位姿，maxDistance-最大距离（米），lowAngle/upAngle-夹角范围（度）
// 返回：true表示目标位于区域内
// 算法说明：
// 1. 计算水平面上由参考点指向目标的向量
// 2. 距离超过maxDistance时返回false，距离极小时视为重合返回true
// 3. 计算该向量与参考朝向的夹角，判断是否在范围内
// 说明：lowAngle=0, upAngle=90 表示前方（不含正侧方）；lowAngle=160, upAngle=181 表示正后方
func IsWithinDistance(target, ref Transform, maxDistance, lowAngle, upAngle float64) bool {
	dx := target.Location.X - ref.Location.X
	dy := target.Location.Y - ref.Location.Y
	norm := math.Hypot(dx, dy)
	if norm < 0.001 {
		return true
	}
	if norm > maxDistance {
		return false
	}
	fwd := ref.ForwardVector()
	cos := (fwd.X*dx + fwd.Y*dy) / norm / math.Max(math.Hypot(fwd.X, fwd.Y), 1e-9)
	angle := math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
	return lowAngle <= angle && angle < upAngle
}

// DistanceToTarget 目标相对参考位姿的距离与夹角（度）
func DistanceToTarget(target Location, ref Transform) (distance, angle float64) {
	dx := target.X - ref.Location.X
	dy := target.Y - ref.Location.Y
	distance = math.Hypot(dx, dy)
	if distance < 1e-9 {
		return 0, 0
	}
	fwd := ref.ForwardVector()
	cos := (fwd.X*dx + fwd.Y*dy) / distance / math.Max(math.Hypot(fwd.X, fwd.Y), 1e-9)
	angle = math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
	return
}
