// Package routingtable 实现参与者 ID 到下一跳地址的并发路由表
//
// 路由表按参与者 ID 分片，每个分片一把读写锁，不同参与者的查找互不阻塞。
// 同一 ID 至多一条记录：重复 Put 不覆盖已有地址（先注册者胜出），
// 需要替换时先 Remove 再 Put。
//
// 带过期时间的非粘性记录在宽限期后由 Purge 清理，Sweeper 周期性执行清理。
package routingtable
