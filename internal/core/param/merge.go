package param

// Merge 把 src 深度合并进 dst 并返回结果
// 两边都是对象时递归合并，其余情况 (数组、标量、类型不同) 以 src 为准
func Merge(dst, src interface{}) interface{} {
	dstMap, ok1 := dst.(map[string]interface{})
	srcMap, ok2 := src.(map[string]interface{})
	if !ok1 || !ok2 {
		return src
	}
	for k, sv := range srcMap {
		if dv, exists := dstMap[k]; exists {
			dstMap[k] = Merge(dv, sv)
		} else {
			dstMap[k] = sv
		}
	}
	return dstMap
}
