package domain

// OrderProperties 每单属性：有效期与自定义标记
type OrderProperties struct {
	// 有效期规则，nil 表示未指定（按 GTC 处理）
	TimeInForce *TimeInForce
	// 自定义标记，透传给券商
	Flags map[string]string
}

// DefaultOrderProperties 默认属性：撤销前有效
func DefaultOrderProperties() *OrderProperties {
	return &OrderProperties{
		TimeInForce: GoodTilCanceled(),
	}
}

// Clone 深拷贝，克隆后的属性与原属性互不影响
func (p *OrderProperties) Clone() *OrderProperties {
	if p == nil {
		return nil
	}
	c := &OrderProperties{
		TimeInForce: p.TimeInForce.Clone(),
	}
	if p.Flags != nil {
		c.Flags = make(map[string]string, len(p.Flags))
		for k, v := range p.Flags {
			c.Flags[k] = v
		}
	}
	return c
}

// EffectiveTimeInForce 生效的有效期规则，未指定时按 GTC
func (p *OrderProperties) EffectiveTimeInForce() *TimeInForce {
	if p == nil || p.TimeInForce == nil {
		return GoodTilCanceled()
	}
	return p.TimeInForce
}
