// Package inprocess 实现进程内传输
//
// 本地参与者通过 SkeletonRegistry 注册一个 Dispatcher，得到 InProcessAddress。
// 路由器解析到该地址时，stub 工厂直接绑定到对应的 Skeleton，消息不经过任何网络传输。
package inprocess
