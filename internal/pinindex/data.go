package pinindex

import "context"

// PinData：pin 及其数据
type PinData struct {
	Pin  string `json:"pin"`
	Data []byte `json:"data"`
}

// Data：单个 pin 的数据；无数据时 ok=false（不检查 pin 是否存在）
func (ix *Index) Data(ctx context.Context, pin string) ([]byte, bool, error) {
	if err := validPin(pin); err != nil {
		return nil, false, err
	}
	var v string
	var ok bool
	err := ix.retry(ctx, "data", func() (err error) {
		v, ok, err = ix.st.HGet(ctx, ix.keys.Data, pin)
		return err
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// 文档注释：批量读取数据
// 约束：没有数据的 pin 不出现在结果中；缺失从不算错误。
func (ix *Index) GetData(ctx context.Context, pins []string) (map[string][]byte, error) {
	var raw map[string]string
	err := ix.retry(ctx, "get_data", func() (err error) {
		raw, err = ix.st.HMGet(ctx, ix.keys.Data, pins...)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

// FilterData：按输入顺序返回有数据的 pin
func (ix *Index) FilterData(ctx context.Context, pins []string) ([]PinData, error) {
	m, err := ix.GetData(ctx, pins)
	if err != nil {
		return nil, err
	}
	out := make([]PinData, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, p := range pins {
		if d, ok := m[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, PinData{Pin: p, Data: d})
		}
	}
	return out, nil
}
